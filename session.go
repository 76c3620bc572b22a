/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Phase is the screen a game session is currently on.
type Phase string

const (
	PhaseStart   Phase = "START"
	PhaseTeams   Phase = "TEAMS"
	PhasePrep    Phase = "PREP"
	PhaseQuiz    Phase = "QUIZ"
	PhaseRanking Phase = "RANKING"
)

// CanTransitionTo reports whether target directly follows p. QUIZ may loop
// onto itself when advancing to the next question. Restart is handled
// separately and is always allowed.
func (p Phase) CanTransitionTo(target Phase) bool {
	switch p {
	case PhaseStart:
		return target == PhaseTeams
	case PhaseTeams:
		return target == PhasePrep
	case PhasePrep:
		return target == PhaseQuiz
	case PhaseQuiz:
		return target == PhaseQuiz || target == PhaseRanking
	default:
		return false
	}
}

const (
	minTeams         = 1
	maxTeams         = 8
	defaultTeamCount = 2
	maxTeamNameRunes = 40
)

var (
	ErrIllegalAction = errors.New("action not allowed right now")
	ErrNoTeams       = errors.New("at least one team is required")
	ErrUnknownTeam   = errors.New("unknown team")
)

type Team struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Session is the state of a single game. It is not safe for concurrent
// use; every game hub owns exactly one and drives it from its run loop.
type Session struct {
	bank *QuestionBank

	phase       Phase
	teams       []Team
	current     int
	revealed    bool
	winners     map[string]bool
	prepPending bool
}

func newSession(bank *QuestionBank) *Session {
	return &Session{
		bank:    bank,
		phase:   PhaseStart,
		winners: make(map[string]bool),
	}
}

func (s *Session) Phase() Phase {
	return s.phase
}

// Teams returns a copy of the registry in setup order.
func (s *Session) Teams() []Team {
	return slices.Clone(s.teams)
}

func (s *Session) QuestionIndex() int {
	return s.current
}

func (s *Session) Revealed() bool {
	return s.revealed
}

func (s *Session) PrepPending() bool {
	return s.prepPending
}

// CurrentQuestion returns the active question. The index is clamped, so
// this never panics on a non-empty bank.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.bank == nil || s.bank.Len() == 0 {
		return Question{}, false
	}

	return s.bank.At(s.current), true
}

func (s *Session) IsWinner(teamID string) bool {
	return s.winners[teamID]
}

// Winners returns the currently selected round winners in registry order.
func (s *Session) Winners() []string {
	ids := make([]string, 0, len(s.winners))
	for _, t := range s.teams {
		if s.winners[t.ID] {
			ids = append(ids, t.ID)
		}
	}

	return ids
}

func (s *Session) require(phase Phase) error {
	if s.phase != phase {
		return fmt.Errorf("%w: in %s, need %s", ErrIllegalAction, s.phase, phase)
	}

	return nil
}

func (s *Session) moveTo(target Phase) error {
	if !s.phase.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalAction, s.phase, target)
	}

	s.phase = target

	return nil
}

// Begin leaves the title screen.
func (s *Session) Begin() error {
	return s.moveTo(PhaseTeams)
}

// parseTeamCount interprets raw count input. Anything non-numeric falls
// back to the default; numbers are clamped into [minTeams, maxTeams].
func parseTeamCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultTeamCount
	}

	return min(max(n, minTeams), maxTeams)
}

// SetTeamCount replaces the registry with freshly named, zero-score teams,
// discarding any earlier edits. It returns the count actually used.
func (s *Session) SetTeamCount(raw string) (int, error) {
	if err := s.require(PhaseTeams); err != nil {
		return 0, err
	}

	n := parseTeamCount(raw)

	teams := make([]Team, n)
	for i := range teams {
		teams[i] = Team{
			ID:   "team-" + strconv.Itoa(i),
			Name: "Team " + strconv.Itoa(i+1),
		}
	}
	s.teams = teams

	return n, nil
}

func normalizeTeamName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= maxTeamNameRunes {
		return name
	}

	return string([]rune(name)[:maxTeamNameRunes])
}

// RenameTeam changes the display name of a team. Duplicate and empty
// names are accepted.
func (s *Session) RenameTeam(id, name string) error {
	if err := s.require(PhaseTeams); err != nil {
		return err
	}

	i := slices.IndexFunc(s.teams, func(t Team) bool { return t.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownTeam, id)
	}

	teams := slices.Clone(s.teams)
	teams[i].Name = normalizeTeamName(name)
	s.teams = teams

	return nil
}

// ConfirmTeams locks in the registry and moves to the prep screen.
func (s *Session) ConfirmTeams() error {
	if err := s.require(PhaseTeams); err != nil {
		return err
	}
	if len(s.teams) == 0 {
		return ErrNoTeams
	}

	return s.moveTo(PhasePrep)
}

// StartPrep marks the prep screen as clicked. It reports false if a
// transition is already pending, in which case the caller must not
// schedule another one.
func (s *Session) StartPrep() (bool, error) {
	if err := s.require(PhasePrep); err != nil {
		return false, err
	}
	if s.prepPending {
		return false, nil
	}

	s.prepPending = true

	return true, nil
}

// FinishPrep completes a pending prep transition into the first question.
func (s *Session) FinishPrep() error {
	if err := s.require(PhasePrep); err != nil {
		return err
	}
	if !s.prepPending {
		return fmt.Errorf("%w: prep not started", ErrIllegalAction)
	}

	s.prepPending = false
	s.current = 0
	s.revealed = false
	clear(s.winners)

	return s.moveTo(PhaseQuiz)
}

// RevealAnswer shows the correct option. There is no way to hide it again
// until the round is committed.
func (s *Session) RevealAnswer() error {
	if err := s.require(PhaseQuiz); err != nil {
		return err
	}

	s.revealed = true

	return nil
}

// ToggleWinner credits or uncredits a team for the current round. Any
// number of teams may be credited at once.
func (s *Session) ToggleWinner(teamID string) error {
	if err := s.require(PhaseQuiz); err != nil {
		return err
	}
	if !slices.ContainsFunc(s.teams, func(t Team) bool { return t.ID == teamID }) {
		return fmt.Errorf("%w: %q", ErrUnknownTeam, teamID)
	}

	if s.winners[teamID] {
		delete(s.winners, teamID)
	} else {
		s.winners[teamID] = true
	}

	return nil
}

// CommitRound adds a point to every credited team, resets the round, and
// either advances to the next question or ends the game.
func (s *Session) CommitRound() error {
	if err := s.require(PhaseQuiz); err != nil {
		return err
	}

	teams := slices.Clone(s.teams)
	for i := range teams {
		if s.winners[teams[i].ID] {
			teams[i].Score++
		}
	}
	s.teams = teams

	clear(s.winners)
	s.revealed = false

	if s.current < s.lastIndex() {
		s.current++
		return s.moveTo(PhaseQuiz)
	}

	return s.moveTo(PhaseRanking)
}

func (s *Session) lastIndex() int {
	if s.bank == nil {
		return -1
	}

	return s.bank.Len() - 1
}

// Restart throws away everything and returns to the title screen.
func (s *Session) Restart() {
	s.phase = PhaseStart
	s.teams = nil
	s.current = 0
	s.revealed = false
	clear(s.winners)
	s.prepPending = false
}

// rankTeams orders a copy of teams by score, highest first. Teams with
// equal scores keep their registry order.
func rankTeams(teams []Team) []Team {
	ranked := slices.Clone(teams)
	slices.SortStableFunc(ranked, func(a, b Team) int {
		return b.Score - a.Score
	})

	return ranked
}

// Ranking returns the final standings.
func (s *Session) Ranking() []Team {
	return rankTeams(s.teams)
}
