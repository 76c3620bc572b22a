/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ImageReveal controls when a question's reference image becomes visible.
type ImageReveal string

const (
	RevealNone       ImageReveal = "none"
	RevealOnQuestion ImageReveal = "question"
	RevealOnAnswer   ImageReveal = "answer"
)

type Option struct {
	Label   string `yaml:"label"`
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

type Question struct {
	ID            int         `yaml:"id"`
	TextPrimary   string      `yaml:"text_primary"`
	TextSecondary string      `yaml:"text_secondary"`
	Options       []Option    `yaml:"options"`
	ImageReveal   ImageReveal `yaml:"image_reveal"`
	Image         string      `yaml:"image"`
}

// ImageVisible reports whether the reference image should be on screen,
// given whether the answer has been revealed.
func (q Question) ImageVisible(revealed bool) bool {
	if q.Image == "" {
		return false
	}

	switch q.ImageReveal {
	case RevealOnQuestion:
		return true
	case RevealOnAnswer:
		return revealed
	default:
		return false
	}
}

// CorrectOption returns the single option marked correct.
func (q Question) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.Correct {
			return o, true
		}
	}

	return Option{}, false
}

// QuestionBank is the immutable, ordered list of questions for every game.
type QuestionBank struct {
	questions []Question
	byID      map[int]int
}

var errEmptyBank = errors.New("question bank contains no questions")

//go:embed questions.yaml
var defaultQuestionsYAML []byte

func defaultQuestionBank() (*QuestionBank, error) {
	return parseQuestionBank(defaultQuestionsYAML)
}

func loadQuestionFile(path string) (*QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	bank, err := parseQuestionBank(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return bank, nil
}

func parseQuestionBank(data []byte) (*QuestionBank, error) {
	var doc struct {
		Questions []Question `yaml:"questions"`
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}

	return newQuestionBank(doc.Questions)
}

func newQuestionBank(questions []Question) (*QuestionBank, error) {
	if len(questions) == 0 {
		return nil, errEmptyBank
	}

	bank := &QuestionBank{
		questions: make([]Question, len(questions)),
		byID:      make(map[int]int, len(questions)),
	}

	for i, q := range questions {
		if q.ImageReveal == "" {
			q.ImageReveal = RevealNone
		}

		if err := validateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d (#%d): %w", i+1, q.ID, err)
		}

		if _, dup := bank.byID[q.ID]; dup {
			return nil, fmt.Errorf("question %d (#%d): duplicate id", i+1, q.ID)
		}

		q.Options = append([]Option(nil), q.Options...)
		bank.questions[i] = q
		bank.byID[q.ID] = i
	}

	return bank, nil
}

func validateQuestion(q Question) error {
	if q.ID <= 0 {
		return errors.New("id must be positive")
	}
	if strings.TrimSpace(q.TextPrimary) == "" {
		return errors.New("missing text_primary")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("needs at least 2 options, has %d", len(q.Options))
	}

	labels := make(map[string]bool, len(q.Options))
	correct := 0
	for _, o := range q.Options {
		if o.Label == "" {
			return errors.New("option with empty label")
		}
		if labels[o.Label] {
			return fmt.Errorf("duplicate option label %q", o.Label)
		}
		labels[o.Label] = true

		if o.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("must have exactly one correct option, has %d", correct)
	}

	switch q.ImageReveal {
	case RevealNone:
	case RevealOnQuestion, RevealOnAnswer:
		if q.Image == "" {
			return fmt.Errorf("image_reveal %q without an image", q.ImageReveal)
		}
		u, err := url.Parse(q.Image)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("image %q is not an http(s) URL", q.Image)
		}
	default:
		return fmt.Errorf("unknown image_reveal %q", q.ImageReveal)
	}

	return nil
}

func (b *QuestionBank) Len() int {
	return len(b.questions)
}

// At returns the question at index i, clamped into range.
func (b *QuestionBank) At(i int) Question {
	if i < 0 {
		i = 0
	}
	if i >= len(b.questions) {
		i = len(b.questions) - 1
	}

	return b.questions[i]
}

func (b *QuestionBank) ByID(id int) (Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Question{}, false
	}

	return b.questions[i], true
}
