package calculate

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/compliance"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

type CalculateRequest struct {
	Formula string      `json:"formula"`
	Values  calc.Values `json:"values"`
}

type CalculateResponse struct {
	Value  *float64        `json:"value"`
	OK     bool            `json:"ok"`
	Reason calc.SkipReason `json:"reason,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// Calculate evaluates one formula. A skipped output is a normal 200 answer with
// ok=false and the reason.
func Calculate(log *slog.Logger) http.HandlerFunc {
	engine := calc.New(log)

	return func(w http.ResponseWriter, r *http.Request) {
		var req CalculateRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		v, skip := engine.Evaluate(req.Formula, req.Values)
		if skip != nil {
			render.JSON(w, r, CalculateResponse{Reason: skip.Reason, Detail: skip.Detail})
			return
		}

		render.JSON(w, r, CalculateResponse{Value: &v, OK: true})
	}
}

type ComplianceRequest struct {
	KPIs       calc.Values `json:"kpis"`
	Thresholds calc.Values `json:"thresholds"`
	Condition  string      `json:"condition"`
}

func EvaluateCompliance(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calculate.EvaluateCompliance"

		var req ComplianceRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		res := compliance.Evaluate(req.KPIs, req.Thresholds, req.Condition)
		log.Debug("compliance evaluated", slog.String("op", op), slog.String("status", string(res.Status)))

		render.JSON(w, r, res)
	}
}
