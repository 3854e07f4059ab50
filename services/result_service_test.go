package services

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalens/speedbracket/models"
	"github.com/mkalens/speedbracket/repositories"
)

// bracketStore is shared in-memory state behind the fake repositories, so a
// test exercises the same read-your-writes behavior a transaction gives the
// real ones.
type bracketStore struct {
	series       map[int]*models.Series
	matches      map[int]*models.Match
	participants map[int][]*models.MatchParticipant
	nextID       int
}

func newBracketStore() *bracketStore {
	return &bracketStore{
		series:       make(map[int]*models.Series),
		matches:      make(map[int]*models.Match),
		participants: make(map[int][]*models.MatchParticipant),
		nextID:       1,
	}
}

func (st *bracketStore) id() int {
	id := st.nextID
	st.nextID++
	return id
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type recordingNotifier struct {
	updates []*SeriesUpdate
}

func (n *recordingNotifier) NotifySeriesUpdated(tournamentID int, payload interface{}) {
	if update, ok := payload.(*SeriesUpdate); ok {
		n.updates = append(n.updates, update)
	}
}

type fakeSeriesRepo struct {
	store *bracketStore
}

func (r *fakeSeriesRepo) Create(ctx context.Context, series *models.Series) error {
	series.ID = r.store.id()
	copied := *series
	r.store.series[series.ID] = &copied
	return nil
}

func (r *fakeSeriesRepo) GetByID(ctx context.Context, id int) (*models.Series, error) {
	series, ok := r.store.series[id]
	if !ok {
		return nil, repositories.ErrSeriesNotFound
	}
	copied := *series
	return &copied, nil
}

func (r *fakeSeriesRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Series, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeSeriesRepo) ListByTournament(ctx context.Context, tournamentID int, phaseID *int) ([]*models.Series, error) {
	list := make([]*models.Series, 0)
	for _, series := range r.store.series {
		if series.TournamentID == tournamentID {
			copied := *series
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *fakeSeriesRepo) UpdateSlots(ctx context.Context, exec repositories.SQLExecutor, id int, team1ID, team2ID *int) error {
	series, ok := r.store.series[id]
	if !ok {
		return repositories.ErrSeriesNotFound
	}
	series.Team1ID = team1ID
	series.Team2ID = team2ID
	return nil
}

func (r *fakeSeriesRepo) UpdateBestOf(ctx context.Context, id int, bestOf int) error {
	series, ok := r.store.series[id]
	if !ok {
		return repositories.ErrSeriesNotFound
	}
	series.BestOf = bestOf
	return nil
}

func (r *fakeSeriesRepo) UpdateWinner(ctx context.Context, exec repositories.SQLExecutor, id int, winnerTeamID *int) error {
	series, ok := r.store.series[id]
	if !ok {
		return repositories.ErrSeriesNotFound
	}
	series.WinnerTeamID = winnerTeamID
	return nil
}

func (r *fakeSeriesRepo) ListDependents(ctx context.Context, exec repositories.SQLExecutor, sourceSeriesID int, slot int, emptyOnly bool) ([]repositories.SeriesDependent, error) {
	dependents := make([]repositories.SeriesDependent, 0)
	for _, series := range r.store.series {
		sourceID, sourceType := series.SourceTeam1SeriesID, series.SourceTeam1Type
		slotValue := series.Team1ID
		if slot == 2 {
			sourceID, sourceType = series.SourceTeam2SeriesID, series.SourceTeam2Type
			slotValue = series.Team2ID
		}
		if sourceID == nil || *sourceID != sourceSeriesID {
			continue
		}
		if emptyOnly && slotValue != nil {
			continue
		}
		dependents = append(dependents, repositories.SeriesDependent{
			SeriesID:   series.ID,
			SourceType: *sourceType,
		})
	}
	sort.Slice(dependents, func(i, j int) bool { return dependents[i].SeriesID < dependents[j].SeriesID })
	return dependents, nil
}

func (r *fakeSeriesRepo) ClearSlotIfHolds(ctx context.Context, exec repositories.SQLExecutor, seriesID int, slot int, teamID int) error {
	series, ok := r.store.series[seriesID]
	if !ok {
		return nil
	}
	slotValue := &series.Team1ID
	if slot == 2 {
		slotValue = &series.Team2ID
	}
	if *slotValue != nil && **slotValue == teamID {
		*slotValue = nil
	}
	return nil
}

func (r *fakeSeriesRepo) SetSlotIfEmpty(ctx context.Context, exec repositories.SQLExecutor, seriesID int, slot int, teamID int) error {
	series, ok := r.store.series[seriesID]
	if !ok {
		return nil
	}
	slotValue := &series.Team1ID
	if slot == 2 {
		slotValue = &series.Team2ID
	}
	if *slotValue == nil {
		value := teamID
		*slotValue = &value
	}
	return nil
}

func (r *fakeSeriesRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.store.series[id]; !ok {
		return repositories.ErrSeriesNotFound
	}
	delete(r.store.series, id)
	return nil
}

type fakeMatchRepo struct {
	store *bracketStore
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	match.ID = r.store.id()
	copied := *match
	r.store.matches[match.ID] = &copied
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (r *fakeMatchRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeMatchRepo) ListBySeries(ctx context.Context, seriesID int) ([]*models.Match, error) {
	list := make([]*models.Match, 0)
	for _, match := range r.store.matches {
		if match.SeriesID != nil && *match.SeriesID == seriesID {
			copied := *match
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *fakeMatchRepo) SetCompleted(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	match, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.IsCompleted = true
	return nil
}

func (r *fakeMatchRepo) CountCompletedWins(ctx context.Context, exec repositories.SQLExecutor, seriesID int) (map[int]int, error) {
	wins := make(map[int]int)
	for _, match := range r.store.matches {
		if match.SeriesID == nil || *match.SeriesID != seriesID || !match.IsCompleted {
			continue
		}
		for _, p := range r.store.participants[match.ID] {
			if p.IsWinner {
				wins[p.TeamID]++
			}
		}
	}
	return wins, nil
}

func (r *fakeMatchRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.store.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(r.store.matches, id)
	delete(r.store.participants, id)
	return nil
}

type fakeParticipantRepo struct {
	store *bracketStore
}

func (r *fakeParticipantRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, matchID int, teamIDs []int) error {
	for _, teamID := range teamIDs {
		r.store.participants[matchID] = append(r.store.participants[matchID], &models.MatchParticipant{
			MatchID: matchID,
			TeamID:  teamID,
		})
	}
	return nil
}

func (r *fakeParticipantRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchParticipant, error) {
	list := make([]*models.MatchParticipant, 0, len(r.store.participants[matchID]))
	for _, p := range r.store.participants[matchID] {
		copied := *p
		list = append(list, &copied)
	}
	return list, nil
}

func (r *fakeParticipantRepo) ListByMatchForUpdate(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]*models.MatchParticipant, error) {
	return r.ListByMatch(ctx, matchID)
}

func (r *fakeParticipantRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, participant *models.MatchParticipant) error {
	for _, p := range r.store.participants[participant.MatchID] {
		if p.TeamID == participant.TeamID {
			p.FinalTimeRaw = participant.FinalTimeRaw
			p.FinalTime = participant.FinalTime
			p.ResultStatus = participant.ResultStatus
			p.Position = participant.Position
			p.IsWinner = participant.IsWinner
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

// bracketFixture wires a ResultService onto the fakes, with helpers for
// building series and matches directly in the store.
type bracketFixture struct {
	store    *bracketStore
	notifier *recordingNotifier
	svc      ResultService
}

func newBracketFixture() *bracketFixture {
	store := newBracketStore()
	notifier := &recordingNotifier{}
	svc := NewResultService(
		passthroughTxRunner{},
		&fakeMatchRepo{store: store},
		&fakeParticipantRepo{store: store},
		&fakeSeriesRepo{store: store},
		notifier,
		nil,
	)
	return &bracketFixture{store: store, notifier: notifier, svc: svc}
}

func (f *bracketFixture) addSeries(series *models.Series) *models.Series {
	series.ID = f.store.id()
	series.TournamentID = 1
	if series.BestOf == 0 {
		series.BestOf = 3
	}
	f.store.series[series.ID] = series
	return series
}

func (f *bracketFixture) addMatch(seriesID *int, teamIDs ...int) *models.Match {
	match := &models.Match{ID: f.store.id(), TournamentID: 1, SeriesID: seriesID}
	f.store.matches[match.ID] = match
	for _, teamID := range teamIDs {
		f.store.participants[match.ID] = append(f.store.participants[match.ID], &models.MatchParticipant{
			MatchID: match.ID,
			TeamID:  teamID,
		})
	}
	return match
}

func (f *bracketFixture) participant(t *testing.T, matchID, teamID int) *models.MatchParticipant {
	t.Helper()
	for _, p := range f.store.participants[matchID] {
		if p.TeamID == teamID {
			return p
		}
	}
	t.Fatalf("team %d not found in match %d", teamID, matchID)
	return nil
}

func (f *bracketFixture) submit(t *testing.T, matchID int, entries map[int]string) {
	t.Helper()
	list := make([]ResultEntry, 0, len(entries))
	for teamID, raw := range entries {
		list = append(list, ResultEntry{TeamID: teamID, Result: raw})
	}
	require.NoError(t, f.svc.SubmitMatchResults(context.Background(), matchID, list))
}

func iptr(v int) *int { return &v }

func sourceRef(seriesID int, sourceType models.SourceType) (*int, *models.SourceType) {
	return &seriesID, &sourceType
}

const (
	teamA = 10
	teamB = 20
	teamC = 30
	teamD = 40
)

func TestSubmitMatchResults_RanksParticipants(t *testing.T) {
	f := newBracketFixture()
	match := f.addMatch(nil, teamA, teamB, teamC)

	f.submit(t, match.ID, map[int]string{
		teamA: "01:00:00",
		teamB: "00:59:30",
		teamC: "dnf",
	})

	assert.True(t, f.store.matches[match.ID].IsCompleted)

	first := f.participant(t, match.ID, teamB)
	require.NotNil(t, first.Position)
	assert.Equal(t, 1, *first.Position)
	assert.True(t, first.IsWinner)
	require.NotNil(t, first.FinalTime)
	assert.Equal(t, 3570, *first.FinalTime)

	second := f.participant(t, match.ID, teamA)
	require.NotNil(t, second.Position)
	assert.Equal(t, 2, *second.Position)
	assert.False(t, second.IsWinner)

	third := f.participant(t, match.ID, teamC)
	require.NotNil(t, third.Position)
	assert.Equal(t, 3, *third.Position)
	require.NotNil(t, third.ResultStatus)
	assert.Equal(t, models.StatusDNF, *third.ResultStatus)
	require.NotNil(t, third.FinalTimeRaw)
	assert.Equal(t, "DNF", *third.FinalTimeRaw)

	assert.Empty(t, f.notifier.updates)
}

func TestSubmitMatchResults_CollectsAllEntryErrors(t *testing.T) {
	f := newBracketFixture()
	match := f.addMatch(nil, teamA, teamB)

	err := f.svc.SubmitMatchResults(context.Background(), match.ID, []ResultEntry{
		{TeamID: teamA, Result: "1:99:00"},
		{TeamID: 777, Result: "00:10:00"},
	})

	var verrs ResultValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)

	reasons := make(map[int]string, len(verrs))
	for _, v := range verrs {
		reasons[v.TeamID] = v.Reason
	}
	assert.Contains(t, reasons, teamA)
	assert.Equal(t, "missing result", reasons[teamB])
	assert.Equal(t, "team is not entered in this match", reasons[777])

	assert.False(t, f.store.matches[match.ID].IsCompleted)
	assert.Nil(t, f.participant(t, match.ID, teamA).Position)
}

func TestSubmitMatchResults_UnknownMatch(t *testing.T) {
	f := newBracketFixture()

	err := f.svc.SubmitMatchResults(context.Background(), 404, []ResultEntry{{TeamID: teamA, Result: "00:10:00"}})
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestSubmitMatchResults_NoParticipants(t *testing.T) {
	f := newBracketFixture()
	match := f.addMatch(nil)

	err := f.svc.SubmitMatchResults(context.Background(), match.ID, nil)
	assert.ErrorIs(t, err, ErrMatchNoParticipants)
}

func TestSubmitMatchResults_TieForFirstLeavesSeriesOpen(t *testing.T) {
	f := newBracketFixture()
	series := f.addSeries(&models.Series{Team1ID: iptr(teamA), Team2ID: iptr(teamB), BestOf: 1})
	match := f.addMatch(&series.ID, teamA, teamB)

	f.submit(t, match.ID, map[int]string{
		teamA: "01:00:00",
		teamB: "01:00:00",
	})

	assert.True(t, f.store.matches[match.ID].IsCompleted)
	assert.False(t, f.participant(t, match.ID, teamA).IsWinner)
	assert.False(t, f.participant(t, match.ID, teamB).IsWinner)
	assert.Nil(t, f.store.series[series.ID].WinnerTeamID)
}

// semifinalFixture is a best-of-3 series feeding a final (winner into slot 1,
// slot 2 assigned manually) and a consolation series (loser into slot 1).
func semifinalFixture() (*bracketFixture, *models.Series, *models.Series, *models.Series) {
	f := newBracketFixture()
	semi := f.addSeries(&models.Series{Team1ID: iptr(teamA), Team2ID: iptr(teamB), BestOf: 3})

	final := &models.Series{Team2ID: iptr(teamD), BestOf: 3}
	final.SourceTeam1SeriesID, final.SourceTeam1Type = sourceRef(semi.ID, models.SourceWinner)
	f.addSeries(final)

	consolation := &models.Series{BestOf: 3}
	consolation.SourceTeam1SeriesID, consolation.SourceTeam1Type = sourceRef(semi.ID, models.SourceLoser)
	f.addSeries(consolation)

	return f, semi, final, consolation
}

func (f *bracketFixture) playSeriesMatch(t *testing.T, seriesID int, winnerTime, loserTime map[int]string) *models.Match {
	t.Helper()
	series := f.store.series[seriesID]
	match := f.addMatch(&series.ID, *series.Team1ID, *series.Team2ID)
	entries := make(map[int]string, 2)
	for teamID, raw := range winnerTime {
		entries[teamID] = raw
	}
	for teamID, raw := range loserTime {
		entries[teamID] = raw
	}
	f.submit(t, match.ID, entries)
	return match
}

func (f *bracketFixture) winMatch(t *testing.T, seriesID, winningTeamID int) *models.Match {
	t.Helper()
	series := f.store.series[seriesID]
	losingTeamID := *series.Team2ID
	if winningTeamID == losingTeamID {
		losingTeamID = *series.Team1ID
	}
	return f.playSeriesMatch(t, seriesID,
		map[int]string{winningTeamID: "00:58:00"},
		map[int]string{losingTeamID: "01:02:00"},
	)
}

func TestSeriesDecidedAtThreshold(t *testing.T) {
	f, semi, final, consolation := semifinalFixture()

	f.winMatch(t, semi.ID, teamA)
	assert.Nil(t, f.store.series[semi.ID].WinnerTeamID, "one win out of two needed decides nothing")
	assert.Nil(t, f.store.series[final.ID].Team1ID)

	f.winMatch(t, semi.ID, teamA)
	require.NotNil(t, f.store.series[semi.ID].WinnerTeamID)
	assert.Equal(t, teamA, *f.store.series[semi.ID].WinnerTeamID)

	require.NotNil(t, f.store.series[final.ID].Team1ID)
	assert.Equal(t, teamA, *f.store.series[final.ID].Team1ID)
	require.NotNil(t, f.store.series[consolation.ID].Team1ID)
	assert.Equal(t, teamB, *f.store.series[consolation.ID].Team1ID)

	require.Len(t, f.notifier.updates, 2)
	last := f.notifier.updates[1]
	assert.Equal(t, semi.ID, last.SeriesID)
	assert.Nil(t, last.OldWinnerTeamID)
	require.NotNil(t, last.NewWinnerTeamID)
	assert.Equal(t, teamA, *last.NewWinnerTeamID)
}

func TestPropagationNeverOverwritesOccupiedSlot(t *testing.T) {
	f, semi, final, _ := semifinalFixture()
	f.store.series[final.ID].Team1ID = iptr(teamC)

	f.winMatch(t, semi.ID, teamA)
	f.winMatch(t, semi.ID, teamA)

	require.NotNil(t, f.store.series[final.ID].Team1ID)
	assert.Equal(t, teamC, *f.store.series[final.ID].Team1ID)
}

func TestResubmittingSameResultChangesNothing(t *testing.T) {
	f, semi, final, consolation := semifinalFixture()
	f.winMatch(t, semi.ID, teamA)
	match := f.winMatch(t, semi.ID, teamA)

	f.submit(t, match.ID, map[int]string{teamA: "00:58:00", teamB: "01:02:00"})

	assert.Equal(t, teamA, *f.store.series[semi.ID].WinnerTeamID)
	assert.Equal(t, teamA, *f.store.series[final.ID].Team1ID)
	assert.Equal(t, teamB, *f.store.series[consolation.ID].Team1ID)
	assert.Equal(t, teamD, *f.store.series[final.ID].Team2ID)
}

func TestDeleteCompletedMatch_RetractsDownstream(t *testing.T) {
	f, semi, final, consolation := semifinalFixture()
	f.winMatch(t, semi.ID, teamA)
	match := f.winMatch(t, semi.ID, teamA)

	require.NoError(t, f.svc.DeleteMatch(context.Background(), match.ID))

	assert.Nil(t, f.store.series[semi.ID].WinnerTeamID)
	assert.Nil(t, f.store.series[final.ID].Team1ID)
	assert.Nil(t, f.store.series[consolation.ID].Team1ID)
	// Manual assignments survive retraction.
	require.NotNil(t, f.store.series[final.ID].Team2ID)
	assert.Equal(t, teamD, *f.store.series[final.ID].Team2ID)
}

func TestDeleteScheduledMatch_LeavesSeriesAlone(t *testing.T) {
	f, semi, final, _ := semifinalFixture()
	f.winMatch(t, semi.ID, teamA)
	f.winMatch(t, semi.ID, teamA)

	scheduled := f.addMatch(&semi.ID, teamA, teamB)
	require.NoError(t, f.svc.DeleteMatch(context.Background(), scheduled.ID))

	require.NotNil(t, f.store.series[semi.ID].WinnerTeamID)
	assert.Equal(t, teamA, *f.store.series[semi.ID].WinnerTeamID)
	assert.Equal(t, teamA, *f.store.series[final.ID].Team1ID)
}

func TestCorrectionFlipsWinnerDownstream(t *testing.T) {
	f, semi, final, consolation := semifinalFixture()
	f.winMatch(t, semi.ID, teamA)
	second := f.winMatch(t, semi.ID, teamA)
	require.Equal(t, teamA, *f.store.series[final.ID].Team1ID)

	// Correcting the second match to a win for the other team reopens the
	// series and pulls the stale winner out of dependent slots.
	f.submit(t, second.ID, map[int]string{teamB: "00:55:00", teamA: "01:05:00"})
	assert.Nil(t, f.store.series[semi.ID].WinnerTeamID)
	assert.Nil(t, f.store.series[final.ID].Team1ID)
	assert.Nil(t, f.store.series[consolation.ID].Team1ID)

	f.winMatch(t, semi.ID, teamB)
	require.NotNil(t, f.store.series[semi.ID].WinnerTeamID)
	assert.Equal(t, teamB, *f.store.series[semi.ID].WinnerTeamID)
	assert.Equal(t, teamB, *f.store.series[final.ID].Team1ID)
	assert.Equal(t, teamA, *f.store.series[consolation.ID].Team1ID)
}

func TestRetractionSkipsManuallyReassignedSlot(t *testing.T) {
	f, semi, final, consolation := semifinalFixture()
	f.winMatch(t, semi.ID, teamA)
	match := f.winMatch(t, semi.ID, teamA)

	// An admin replaced the propagated team by hand. Retraction only clears
	// slots still holding the retracted team.
	f.store.series[final.ID].Team1ID = iptr(teamC)

	require.NoError(t, f.svc.DeleteMatch(context.Background(), match.ID))

	require.NotNil(t, f.store.series[final.ID].Team1ID)
	assert.Equal(t, teamC, *f.store.series[final.ID].Team1ID)
	assert.Nil(t, f.store.series[consolation.ID].Team1ID)
}

func TestSeriesWithEmptySlotNeverResolves(t *testing.T) {
	f := newBracketFixture()
	series := f.addSeries(&models.Series{Team1ID: iptr(teamA), BestOf: 1})
	series.WinnerTeamID = iptr(teamA) // stale winner left by an earlier state

	dependent := &models.Series{BestOf: 1}
	dependent.SourceTeam1SeriesID, dependent.SourceTeam1Type = sourceRef(series.ID, models.SourceWinner)
	f.addSeries(dependent)
	f.store.series[dependent.ID].Team1ID = iptr(teamA)

	match := f.addMatch(&series.ID, teamA, teamB)
	f.submit(t, match.ID, map[int]string{teamA: "00:50:00", teamB: "00:51:00"})

	assert.Nil(t, f.store.series[series.ID].WinnerTeamID)
	assert.Nil(t, f.store.series[dependent.ID].Team1ID, "stale propagated value is retracted")
}
