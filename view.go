/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strconv"
	"time"
)

const (
	showTitle    = "FANZINE"
	showSubtitle = "TRIVIAL SHOW"
)

// View is everything the browser needs to draw one screen. Exactly one
// variant exists per phase.
type View interface {
	phase() Phase
}

type StartView struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type TeamsView struct {
	MinTeams     int    `json:"min_teams"`
	MaxTeams     int    `json:"max_teams"`
	DefaultCount int    `json:"default_count"`
	Teams        []Team `json:"teams"`
	CanConfirm   bool   `json:"can_confirm"`
}

type PrepView struct {
	Pending bool  `json:"pending"`
	DelayMS int64 `json:"delay_ms"`
}

type OptionView struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type ImageView struct {
	URL string `json:"url"`
	QR  string `json:"qr"`
}

type ScoreView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Selected bool   `json:"selected"`
}

type QuizView struct {
	Number        int          `json:"number"`
	Total         int          `json:"total"`
	TextPrimary   string       `json:"text_primary"`
	TextSecondary string       `json:"text_secondary"`
	Options       []OptionView `json:"options"`
	Revealed      bool         `json:"revealed"`
	Image         *ImageView   `json:"image,omitempty"`
	Teams         []ScoreView  `json:"teams"`
	Last          bool         `json:"last"`
}

type RankEntry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type RankingView struct {
	Winner      RankEntry   `json:"winner"`
	Leaderboard []RankEntry `json:"leaderboard"`
	CelebrateMS int64       `json:"celebrate_ms"`
}

func (StartView) phase() Phase   { return PhaseStart }
func (TeamsView) phase() Phase   { return PhaseTeams }
func (PrepView) phase() Phase    { return PhasePrep }
func (QuizView) phase() Phase    { return PhaseQuiz }
func (RankingView) phase() Phase { return PhaseRanking }

// renderOptions configures the parts of a view that come from the server
// rather than the session.
type renderOptions struct {
	prefix       string
	prepDelay    time.Duration
	celebrateFor time.Duration
}

// Render draws the current screen of s.
func Render(s *Session, opts renderOptions) View {
	switch s.Phase() {
	case PhaseStart:
		return StartView{
			Title:    showTitle,
			Subtitle: showSubtitle,
		}
	case PhaseTeams:
		teams := s.Teams()
		if teams == nil {
			teams = []Team{}
		}

		return TeamsView{
			MinTeams:     minTeams,
			MaxTeams:     maxTeams,
			DefaultCount: defaultTeamCount,
			Teams:        teams,
			CanConfirm:   len(teams) > 0,
		}
	case PhasePrep:
		return PrepView{
			Pending: s.PrepPending(),
			DelayMS: opts.prepDelay.Milliseconds(),
		}
	case PhaseQuiz:
		return renderQuiz(s, opts)
	case PhaseRanking:
		return renderRanking(s.Ranking(), opts)
	default:
		panic(fmt.Sprintf("render: unknown phase %q", s.Phase()))
	}
}

func renderQuiz(s *Session, opts renderOptions) QuizView {
	q, _ := s.CurrentQuestion()
	revealed := s.Revealed()

	options := make([]OptionView, len(q.Options))
	for i, o := range q.Options {
		options[i] = OptionView{
			Label:   o.Label,
			Text:    o.Text,
			Correct: revealed && o.Correct,
		}
	}

	teams := s.Teams()
	scores := make([]ScoreView, len(teams))
	for i, t := range teams {
		scores[i] = ScoreView{
			ID:       t.ID,
			Name:     t.Name,
			Score:    t.Score,
			Selected: s.IsWinner(t.ID),
		}
	}

	var image *ImageView
	if q.ImageVisible(revealed) {
		image = &ImageView{
			URL: q.Image,
			QR:  opts.prefix + "/questions/" + strconv.Itoa(q.ID) + "/qr",
		}
	}

	total := 0
	if s.bank != nil {
		total = s.bank.Len()
	}

	return QuizView{
		Number:        s.QuestionIndex() + 1,
		Total:         total,
		TextPrimary:   q.TextPrimary,
		TextSecondary: q.TextSecondary,
		Options:       options,
		Revealed:      revealed,
		Image:         image,
		Teams:         scores,
		Last:          s.QuestionIndex() >= total-1,
	}
}

func renderRanking(ranked []Team, opts renderOptions) RankingView {
	v := RankingView{
		Leaderboard: []RankEntry{},
		CelebrateMS: opts.celebrateFor.Milliseconds(),
	}

	for i, t := range ranked {
		entry := RankEntry{
			Rank:  i + 1,
			Name:  t.Name,
			Score: t.Score,
		}

		if i == 0 {
			v.Winner = entry
			continue
		}

		v.Leaderboard = append(v.Leaderboard, entry)
	}

	return v
}
