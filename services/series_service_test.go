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

type fakeTeamRepo struct {
	teams  map[int]*models.Team
	nextID int
}

func newFakeTeamRepo(names ...string) *fakeTeamRepo {
	r := &fakeTeamRepo{teams: make(map[int]*models.Team), nextID: 1}
	for _, name := range names {
		r.teams[r.nextID] = &models.Team{ID: r.nextID, Name: name}
		r.nextID++
	}
	return r
}

func (r *fakeTeamRepo) Create(ctx context.Context, team *models.Team) error {
	team.ID = r.nextID
	r.nextID++
	copied := *team
	r.teams[team.ID] = &copied
	return nil
}

func (r *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *team
	return &copied, nil
}

func (r *fakeTeamRepo) List(ctx context.Context) ([]*models.Team, error) {
	list := make([]*models.Team, 0, len(r.teams))
	for _, team := range r.teams {
		copied := *team
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *fakeTeamRepo) UpdateName(ctx context.Context, id int, name string) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.Name = name
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

func newSeriesServiceFixture() (*bracketFixture, SeriesService) {
	f := newBracketFixture()
	svc := NewSeriesService(
		&fakeSeriesRepo{store: f.store},
		&fakeMatchRepo{store: f.store},
		newFakeTeamRepo("Alpha", "Bravo"),
	)
	return f, svc
}

func sourceTypePtr(t models.SourceType) *models.SourceType { return &t }

func TestCreateSeries_Validation(t *testing.T) {
	_, svc := newSeriesServiceFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateSeriesInput
		wantErr error
	}{
		{
			name:    "even best_of",
			input:   CreateSeriesInput{TournamentID: 1, BestOf: 2},
			wantErr: ErrBestOfInvalid,
		},
		{
			name:    "zero best_of",
			input:   CreateSeriesInput{TournamentID: 1, BestOf: 0},
			wantErr: ErrBestOfInvalid,
		},
		{
			name:    "same team in both slots",
			input:   CreateSeriesInput{TournamentID: 1, BestOf: 1, Team1ID: iptr(1), Team2ID: iptr(1)},
			wantErr: ErrSameTeamBothSlots,
		},
		{
			name: "team and source on the same slot",
			input: CreateSeriesInput{
				TournamentID: 1, BestOf: 1,
				Team1ID:             iptr(1),
				SourceTeam1SeriesID: iptr(7),
				SourceTeam1Type:     sourceTypePtr(models.SourceWinner),
			},
			wantErr: ErrSlotConflict,
		},
		{
			name: "source without a type",
			input: CreateSeriesInput{
				TournamentID: 1, BestOf: 1,
				SourceTeam1SeriesID: iptr(7),
			},
			wantErr: ErrSourceTypeInvalid,
		},
		{
			name: "source with a bogus type",
			input: CreateSeriesInput{
				TournamentID: 1, BestOf: 1,
				SourceTeam1SeriesID: iptr(7),
				SourceTeam1Type:     sourceTypePtr(models.SourceType("champion")),
			},
			wantErr: ErrSourceTypeInvalid,
		},
		{
			name: "unknown source series",
			input: CreateSeriesInput{
				TournamentID: 1, BestOf: 1,
				SourceTeam1SeriesID: iptr(404),
				SourceTeam1Type:     sourceTypePtr(models.SourceWinner),
			},
			wantErr: ErrSeriesNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateSeries_SourceMustShareTournamentAndPhase(t *testing.T) {
	f, svc := newSeriesServiceFixture()
	ctx := context.Background()

	source := f.addSeries(&models.Series{Team1ID: iptr(1), Team2ID: iptr(2), BestOf: 1})

	_, err := svc.Create(ctx, CreateSeriesInput{
		TournamentID:        2,
		BestOf:              1,
		SourceTeam1SeriesID: &source.ID,
		SourceTeam1Type:     sourceTypePtr(models.SourceWinner),
	})
	assert.ErrorIs(t, err, ErrSourcePhaseMismatch)

	_, err = svc.Create(ctx, CreateSeriesInput{
		TournamentID:        1,
		PhaseID:             iptr(5),
		BestOf:              1,
		SourceTeam1SeriesID: &source.ID,
		SourceTeam1Type:     sourceTypePtr(models.SourceLoser),
	})
	assert.ErrorIs(t, err, ErrSourcePhaseMismatch)

	created, err := svc.Create(ctx, CreateSeriesInput{
		TournamentID:        1,
		BestOf:              3,
		SourceTeam1SeriesID: &source.ID,
		SourceTeam1Type:     sourceTypePtr(models.SourceWinner),
	})
	require.NoError(t, err)
	assert.Nil(t, created.Team1ID)
	assert.Equal(t, source.ID, *created.SourceTeam1SeriesID)
}

func TestUpdateSeriesSlots_LockedOnceMatchesExist(t *testing.T) {
	f, svc := newSeriesServiceFixture()
	ctx := context.Background()

	series := f.addSeries(&models.Series{Team1ID: iptr(1), Team2ID: iptr(2), BestOf: 3})
	f.addMatch(&series.ID, 1, 2)

	_, err := svc.UpdateSlots(ctx, series.ID, UpdateSeriesSlotsInput{Team1ID: iptr(2), Team2ID: iptr(1)})
	assert.ErrorIs(t, err, ErrSeriesLocked)

	// best_of stays editable with matches in place
	updated, err := svc.UpdateBestOf(ctx, series.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.BestOf)

	_, err = svc.UpdateBestOf(ctx, series.ID, 4)
	assert.ErrorIs(t, err, ErrBestOfInvalid)
}

func TestDeleteSeries_RefusedWithMatches(t *testing.T) {
	f, svc := newSeriesServiceFixture()
	ctx := context.Background()

	series := f.addSeries(&models.Series{Team1ID: iptr(1), Team2ID: iptr(2), BestOf: 1})
	f.addMatch(&series.ID, 1, 2)

	err := svc.Delete(ctx, series.ID)
	assert.ErrorIs(t, err, ErrSeriesHasMatches)

	empty := f.addSeries(&models.Series{Team1ID: iptr(1), Team2ID: iptr(2), BestOf: 1})
	require.NoError(t, svc.Delete(ctx, empty.ID))
}
