package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/jananikolasekar/hut8-janani/internal/apperror"
	"github.com/jananikolasekar/hut8-janani/internal/profitability"
)

// maxRequestBytes bounds the /calculate request body
const maxRequestBytes = 64 << 10

// calculateRequest mirrors profitability.Request with pointer fields so
// absent keys can be told apart from zero values
type calculateRequest struct {
	HashRate          *float64 `json:"hash_rate"`
	PowerConsumption  *float64 `json:"power_consumption"`
	ElectricityCost   *float64 `json:"electricity_cost"`
	InitialInvestment *float64 `json:"initial_investment"`
}

// HealthResponse is returned by the liveness check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Detail string `json:"detail"`
}

// handleCalculate runs a profitability calculation against live market data
// POST /calculate
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCalculateRequest(r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	snapshot, err := s.market.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.calculator.Compute(req, snapshot)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.metrics.ObserveCalculation("ok")
	s.jsonResponse(w, report.Rounded())
}

// handleMarket returns the current price and difficulty
// GET /market
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.market.Snapshot(r.Context())
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, snapshot)
}

// handleHealth is the liveness check
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, HealthResponse{Status: "ok", Version: s.version})
}

// decodeCalculateRequest parses and validates a /calculate body
func decodeCalculateRequest(r io.Reader) (profitability.Request, error) {
	var body calculateRequest
	dec := json.NewDecoder(io.LimitReader(r, maxRequestBytes))
	if err := dec.Decode(&body); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return profitability.Request{}, apperror.Input(apperror.CodeInvalidFormat, "%s must be a number", typeErr.Field)
		}
		if errors.Is(err, io.EOF) {
			return profitability.Request{}, apperror.Input(apperror.CodeInvalidInput, "request body is required")
		}
		return profitability.Request{}, apperror.Input(apperror.CodeInvalidFormat, "invalid JSON: %v", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return profitability.Request{}, apperror.Input(apperror.CodeInvalidFormat, "invalid JSON: unexpected data after the request body")
	}

	required := []struct {
		name  string
		value *float64
	}{
		{"hash_rate", body.HashRate},
		{"power_consumption", body.PowerConsumption},
		{"electricity_cost", body.ElectricityCost},
		{"initial_investment", body.InitialInvestment},
	}
	for _, f := range required {
		if f.value == nil {
			return profitability.Request{}, apperror.Input(apperror.CodeRequiredField, "%s is required", f.name)
		}
	}

	req := profitability.Request{
		HashRate:          *body.HashRate,
		PowerConsumption:  *body.PowerConsumption,
		ElectricityCost:   *body.ElectricityCost,
		InitialInvestment: *body.InitialInvestment,
	}
	if err := req.Validate(); err != nil {
		return profitability.Request{}, err
	}
	return req, nil
}

// fail records a failed calculation and writes the error
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	outcome := apperror.KindOf(err).String()
	s.metrics.ObserveCalculation(outcome)
	s.errorResponse(w, r, err)
}

// errorResponse logs err and writes it as {"detail": ...}
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		status = appErr.StatusCode()
	}

	kind := apperror.KindOf(err)
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("kind", kind.String()),
		zap.String("code", string(apperror.CodeOf(err))),
		zap.Error(err),
	}
	if kind == apperror.KindInput {
		s.logger.Info("request rejected", fields...)
	} else {
		s.logger.Warn("request failed", fields...)
	}

	writeDetail(w, status, err.Error())
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}
