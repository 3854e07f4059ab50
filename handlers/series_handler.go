package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/mkalens/speedbracket/services"
)

type SeriesHandler struct {
	seriesService services.SeriesService
}

func NewSeriesHandler(seriesService services.SeriesService) *SeriesHandler {
	return &SeriesHandler{seriesService: seriesService}
}

func (h *SeriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateSeriesInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"series": series}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.Get(r.Context(), seriesID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"series": series}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeriesHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phaseID, err := optionalPhaseID(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.ListByTournament(r.Context(), tournamentID, phaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"series": series}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeriesHandler) UpdateSlots(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateSeriesSlotsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.UpdateSlots(r.Context(), seriesID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"series": series}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeriesHandler) UpdateBestOf(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		BestOf int `json:"best_of"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	series, err := h.seriesService.UpdateBestOf(r.Context(), seriesID, input.BestOf)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"series": series}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	seriesID, err := idParam(r, "seriesID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.seriesService.Delete(r.Context(), seriesID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func optionalPhaseID(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("phase_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return nil, errors.New("invalid phase_id parameter")
	}
	return &id, nil
}
