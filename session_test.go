/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBank(t *testing.T, n int) *QuestionBank {
	t.Helper()

	questions := make([]Question, n)
	for i := range questions {
		questions[i] = Question{
			ID:          i + 1,
			TextPrimary: "Question " + strconv.Itoa(i+1),
			Options: []Option{
				{Label: "A", Text: "right", Correct: true},
				{Label: "B", Text: "wrong"},
				{Label: "C", Text: "also wrong"},
			},
		}
	}

	bank, err := newQuestionBank(questions)
	require.NoError(t, err)

	return bank
}

// quizSession walks a fresh session into the first question.
func quizSession(t *testing.T, bank *QuestionBank, count string) *Session {
	t.Helper()

	s := newSession(bank)
	require.NoError(t, s.Begin())
	_, err := s.SetTeamCount(count)
	require.NoError(t, err)
	require.NoError(t, s.ConfirmTeams())
	scheduled, err := s.StartPrep()
	require.NoError(t, err)
	require.True(t, scheduled)
	require.NoError(t, s.FinishPrep())
	require.Equal(t, PhaseQuiz, s.Phase())

	return s
}

func TestPhaseCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseStart, PhaseTeams, true},
		{PhaseStart, PhaseQuiz, false},
		{PhaseTeams, PhasePrep, true},
		{PhaseTeams, PhaseStart, false},
		{PhasePrep, PhaseQuiz, true},
		{PhasePrep, PhaseRanking, false},
		{PhaseQuiz, PhaseQuiz, true},
		{PhaseQuiz, PhaseRanking, true},
		{PhaseQuiz, PhaseTeams, false},
		{PhaseRanking, PhaseStart, false},
		{PhaseRanking, PhaseQuiz, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSetTeamCountCreatesFreshTeams(t *testing.T) {
	for n := minTeams; n <= maxTeams; n++ {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			s := newSession(testBank(t, 3))
			require.NoError(t, s.Begin())

			got, err := s.SetTeamCount(strconv.Itoa(n))
			require.NoError(t, err)
			assert.Equal(t, n, got)

			teams := s.Teams()
			require.Len(t, teams, n)

			seen := make(map[string]bool)
			for i, team := range teams {
				assert.Equal(t, "team-"+strconv.Itoa(i), team.ID)
				assert.Equal(t, "Team "+strconv.Itoa(i+1), team.Name)
				assert.Zero(t, team.Score)
				assert.False(t, seen[team.ID], "duplicate id %s", team.ID)
				seen[team.ID] = true
			}
		})
	}
}

func TestParseTeamCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"3", 3},
		{" 4 ", 4},
		{"", defaultTeamCount},
		{"abc", defaultTeamCount},
		{"2.5", defaultTeamCount},
		{"3abc", defaultTeamCount},
		{"0", minTeams},
		{"-4", minTeams},
		{"9", maxTeams},
		{"1000", maxTeams},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTeamCount(tt.raw))
		})
	}
}

func TestSetTeamCountDiscardsEdits(t *testing.T) {
	s := newSession(testBank(t, 3))
	require.NoError(t, s.Begin())

	_, err := s.SetTeamCount("2")
	require.NoError(t, err)
	require.NoError(t, s.RenameTeam("team-0", "Las Goyas"))

	_, err = s.SetTeamCount("2")
	require.NoError(t, err)

	assert.Equal(t, "Team 1", s.Teams()[0].Name)
}

func TestRenameTeam(t *testing.T) {
	s := newSession(testBank(t, 3))
	require.NoError(t, s.Begin())
	_, err := s.SetTeamCount("3")
	require.NoError(t, err)

	require.NoError(t, s.RenameTeam("team-1", "  Botín  "))
	require.NoError(t, s.RenameTeam("team-2", "Botín"))
	require.NoError(t, s.RenameTeam("team-0", ""))

	teams := s.Teams()
	assert.Equal(t, "", teams[0].Name)
	assert.Equal(t, "Botín", teams[1].Name)
	assert.Equal(t, "Botín", teams[2].Name)

	err = s.RenameTeam("team-9", "nobody")
	assert.ErrorIs(t, err, ErrUnknownTeam)

	long := ""
	for i := 0; i < maxTeamNameRunes+10; i++ {
		long += "ñ"
	}
	require.NoError(t, s.RenameTeam("team-0", long))
	assert.Equal(t, maxTeamNameRunes, len([]rune(s.Teams()[0].Name)))
}

func TestTeamsAreCopies(t *testing.T) {
	s := newSession(testBank(t, 3))
	require.NoError(t, s.Begin())
	_, err := s.SetTeamCount("2")
	require.NoError(t, err)

	teams := s.Teams()
	teams[0].Name = "mutated"
	teams[0].Score = 99

	assert.Equal(t, "Team 1", s.Teams()[0].Name)
	assert.Zero(t, s.Teams()[0].Score)
}

func TestConfirmTeamsRequiresTeams(t *testing.T) {
	s := newSession(testBank(t, 3))
	require.NoError(t, s.Begin())

	assert.ErrorIs(t, s.ConfirmTeams(), ErrNoTeams)
	assert.Equal(t, PhaseTeams, s.Phase())

	_, err := s.SetTeamCount("1")
	require.NoError(t, err)
	require.NoError(t, s.ConfirmTeams())
	assert.Equal(t, PhasePrep, s.Phase())

	_, err = s.SetTeamCount("4")
	assert.ErrorIs(t, err, ErrIllegalAction)
	assert.ErrorIs(t, s.RenameTeam("team-0", "late"), ErrIllegalAction)
	assert.Len(t, s.Teams(), 1)
}

func TestPrepSchedulesOnce(t *testing.T) {
	s := newSession(testBank(t, 3))
	require.NoError(t, s.Begin())
	_, err := s.SetTeamCount("2")
	require.NoError(t, err)
	require.NoError(t, s.ConfirmTeams())

	assert.ErrorIs(t, s.FinishPrep(), ErrIllegalAction)

	scheduled, err := s.StartPrep()
	require.NoError(t, err)
	assert.True(t, scheduled)
	assert.True(t, s.PrepPending())

	scheduled, err = s.StartPrep()
	require.NoError(t, err)
	assert.False(t, scheduled)

	require.NoError(t, s.FinishPrep())
	assert.Equal(t, PhaseQuiz, s.Phase())
	assert.False(t, s.PrepPending())
	assert.Equal(t, 0, s.QuestionIndex())

	assert.ErrorIs(t, s.FinishPrep(), ErrIllegalAction)
}

func TestToggleWinnerTwiceRestores(t *testing.T) {
	s := quizSession(t, testBank(t, 3), "3")

	require.NoError(t, s.ToggleWinner("team-1"))
	before := s.Winners()

	require.NoError(t, s.ToggleWinner("team-2"))
	require.NoError(t, s.ToggleWinner("team-2"))

	assert.Equal(t, before, s.Winners())

	require.NoError(t, s.ToggleWinner("team-1"))
	assert.Empty(t, s.Winners())

	assert.ErrorIs(t, s.ToggleWinner("team-7"), ErrUnknownTeam)
}

func TestCommitRound(t *testing.T) {
	s := quizSession(t, testBank(t, 3), "2")

	require.NoError(t, s.RevealAnswer())
	require.NoError(t, s.ToggleWinner("team-0"))
	require.NoError(t, s.CommitRound())

	teams := s.Teams()
	assert.Equal(t, 1, teams[0].Score)
	assert.Equal(t, 0, teams[1].Score)
	assert.Empty(t, s.Winners())
	assert.False(t, s.Revealed())
	assert.Equal(t, 1, s.QuestionIndex())
	assert.Equal(t, PhaseQuiz, s.Phase())
}

func TestCommitRoundCreditsEveryWinner(t *testing.T) {
	s := quizSession(t, testBank(t, 3), "3")

	require.NoError(t, s.ToggleWinner("team-0"))
	require.NoError(t, s.ToggleWinner("team-2"))
	require.NoError(t, s.CommitRound())

	// Nobody is credited for the second question.
	require.NoError(t, s.CommitRound())

	teams := s.Teams()
	assert.Equal(t, []int{1, 0, 1}, []int{teams[0].Score, teams[1].Score, teams[2].Score})
}

func TestCommitRoundOnLastQuestionRanks(t *testing.T) {
	s := quizSession(t, testBank(t, 2), "2")

	require.NoError(t, s.CommitRound())
	assert.Equal(t, 1, s.QuestionIndex())

	require.NoError(t, s.ToggleWinner("team-1"))
	require.NoError(t, s.CommitRound())

	assert.Equal(t, PhaseRanking, s.Phase())
	assert.Equal(t, 1, s.QuestionIndex())
	assert.Equal(t, "team-1", s.Ranking()[0].ID)

	assert.ErrorIs(t, s.CommitRound(), ErrIllegalAction)
	assert.ErrorIs(t, s.RevealAnswer(), ErrIllegalAction)
	assert.ErrorIs(t, s.ToggleWinner("team-0"), ErrIllegalAction)
	assert.Equal(t, 1, s.Teams()[1].Score)
}

func TestRankTeamsIsStable(t *testing.T) {
	teams := []Team{
		{ID: "A", Name: "A", Score: 3},
		{ID: "B", Name: "B", Score: 5},
		{ID: "C", Name: "C", Score: 5},
	}

	ranked := rankTeams(teams)

	ids := make([]string, len(ranked))
	for i, team := range ranked {
		ids[i] = team.ID
	}
	assert.Equal(t, []string{"B", "C", "A"}, ids)
	assert.Equal(t, "A", teams[0].ID, "input must not be reordered")
}

func TestIllegalActionsKeepState(t *testing.T) {
	s := newSession(testBank(t, 3))

	_, err := s.SetTeamCount("3")
	assert.ErrorIs(t, err, ErrIllegalAction)
	assert.ErrorIs(t, s.ConfirmTeams(), ErrIllegalAction)
	assert.ErrorIs(t, s.RevealAnswer(), ErrIllegalAction)
	assert.ErrorIs(t, s.CommitRound(), ErrIllegalAction)
	_, err = s.StartPrep()
	assert.ErrorIs(t, err, ErrIllegalAction)

	assert.Equal(t, PhaseStart, s.Phase())
	assert.Empty(t, s.Teams())

	require.NoError(t, s.Begin())
	assert.ErrorIs(t, s.Begin(), ErrIllegalAction)
	assert.Equal(t, PhaseTeams, s.Phase())
}

func TestRestartResetsEverything(t *testing.T) {
	s := quizSession(t, testBank(t, 3), "2")
	require.NoError(t, s.RevealAnswer())
	require.NoError(t, s.ToggleWinner("team-0"))
	require.NoError(t, s.CommitRound())
	require.NoError(t, s.ToggleWinner("team-1"))

	s.Restart()

	assert.Equal(t, PhaseStart, s.Phase())
	assert.Empty(t, s.Teams())
	assert.Zero(t, s.QuestionIndex())
	assert.False(t, s.Revealed())
	assert.Empty(t, s.Winners())
	assert.False(t, s.PrepPending())
}

func TestCurrentQuestionClamps(t *testing.T) {
	bank := testBank(t, 2)
	s := newSession(bank)

	s.current = 7
	q, ok := s.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, 2, q.ID)

	s.current = -1
	q, ok = s.CurrentQuestion()
	require.True(t, ok)
	assert.Equal(t, 1, q.ID)

	_, ok = newSession(nil).CurrentQuestion()
	assert.False(t, ok)
}

func TestFullGameScenario(t *testing.T) {
	bank, err := defaultQuestionBank()
	require.NoError(t, err)

	s := quizSession(t, bank, "2")
	assert.Equal(t, 0, s.QuestionIndex())
	assert.Equal(t, 12, bank.Len())

	require.NoError(t, s.RevealAnswer())
	require.NoError(t, s.ToggleWinner("team-0"))
	require.NoError(t, s.CommitRound())

	teams := s.Teams()
	assert.Equal(t, 1, teams[0].Score)
	assert.Equal(t, 0, teams[1].Score)
	assert.Equal(t, 1, s.QuestionIndex())

	for s.Phase() == PhaseQuiz {
		require.NoError(t, s.ToggleWinner("team-1"))
		require.NoError(t, s.CommitRound())
	}

	ranked := s.Ranking()
	assert.Equal(t, PhaseRanking, s.Phase())
	assert.Equal(t, "team-1", ranked[0].ID)
	assert.Equal(t, 11, ranked[0].Score)
	assert.Equal(t, 1, ranked[1].Score)
}
