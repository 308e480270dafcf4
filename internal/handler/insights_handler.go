package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	dateLayout        = "2006-01-02"
	maxAggregateBytes = 4 << 20
)

// ============================================================
// Response bodies
// ============================================================

type dailyPointResponse struct {
	Day      string  `json:"day"`
	Incoming float64 `json:"incoming"`
	Outgoing float64 `json:"outgoing"`
}

type categoryTotalResponse struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type insightsResponse struct {
	DailyTransactionAmountArray []dailyPointResponse    `json:"dailyTransactionAmountArray"`
	SortedCategories            []categoryTotalResponse `json:"sortedCategories"`
	TotalTransfer               *float64                `json:"totalTransfer"`
}

type dailySeriesResponse struct {
	DailyTransactionAmountArray []dailyPointResponse `json:"dailyTransactionAmountArray"`
}

type categoriesResponse struct {
	SortedCategories []categoryTotalResponse `json:"sortedCategories"`
	TotalTransfer    *float64                `json:"totalTransfer"`
}

func toDailyResponse(points []domain.DailyPoint) []dailyPointResponse {
	out := make([]dailyPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, dailyPointResponse{
			Day:      p.Day,
			Incoming: p.Incoming.InexactFloat64(),
			Outgoing: p.Outgoing.InexactFloat64(),
		})
	}
	return out
}

func toCategoriesResponse(totals []domain.CategoryTotal) []categoryTotalResponse {
	out := make([]categoryTotalResponse, 0, len(totals))
	for _, c := range totals {
		out = append(out, categoryTotalResponse{Category: c.Category, Total: c.Total.InexactFloat64()})
	}
	return out
}

func toTransferResponse(total *decimal.Decimal) *float64 {
	if total == nil {
		return nil
	}
	f := total.InexactFloat64()
	return &f
}

func toInsightsResponse(in *domain.Insights) insightsResponse {
	return insightsResponse{
		DailyTransactionAmountArray: toDailyResponse(in.DailyTransactionAmountArray),
		SortedCategories:            toCategoriesResponse(in.SortedCategories),
		TotalTransfer:               toTransferResponse(in.TotalTransfer),
	}
}

// ============================================================
// Customer insights
// ============================================================

func getInsightsHandler(svc *service.InsightsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := loadInsights(w, r, svc, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toInsightsResponse(result))
	}
}

func getDailySeriesHandler(svc *service.InsightsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := loadInsights(w, r, svc, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, dailySeriesResponse{
			DailyTransactionAmountArray: toDailyResponse(result.DailyTransactionAmountArray),
		})
	}
}

func getCategoriesHandler(svc *service.InsightsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := loadInsights(w, r, svc, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, categoriesResponse{
			SortedCategories: toCategoriesResponse(result.SortedCategories),
			TotalTransfer:    toTransferResponse(result.TotalTransfer),
		})
	}
}

func getInsightsViewHandler(svc *service.InsightsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.GetInsightsView")
		defer span.End()

		customerID := chi.URLParam(r, "customerId")
		query, err := parseInsightsQuery(r, svc.Location())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		lang, err := requestLanguage(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("customer.id", customerID), attribute.String("lang", lang))

		view, err := svc.GetInsightsView(ctx, customerID, query, lang)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// loadInsights parses the request and runs GetInsights, writing the error
// response itself when it fails.
func loadInsights(w http.ResponseWriter, r *http.Request, svc *service.InsightsService, logger *zap.Logger) (*domain.Insights, bool) {
	ctx, span := tracer.Start(r.Context(), "Handler.GetInsights")
	defer span.End()

	customerID := chi.URLParam(r, "customerId")
	span.SetAttributes(attribute.String("customer.id", customerID))

	query, err := parseInsightsQuery(r, svc.Location())
	if err != nil {
		handleServiceError(w, err, logger)
		return nil, false
	}

	result, err := svc.GetInsights(ctx, customerID, query)
	if err != nil {
		handleServiceError(w, err, logger)
		return nil, false
	}
	return result, true
}

// ============================================================
// Stateless aggregation
// ============================================================

type aggregateTransaction struct {
	ID                  string              `json:"id"`
	WalletID            string              `json:"walletId"`
	Amount              decimal.NullDecimal `json:"amount"`
	PaidAt              *time.Time          `json:"paidAt"`
	Category            string              `json:"category"`
	DestinationWalletID *string             `json:"destinationWalletId"`
	Description         string              `json:"description"`
}

type aggregateRequest struct {
	Transactions []aggregateTransaction `json:"transactions"`
}

func (req aggregateRequest) toDomain() ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(req.Transactions))
	for i, t := range req.Transactions {
		if !t.Amount.Valid {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("transactions[%d].amount", i), Message: "is required"}
		}
		if t.PaidAt == nil || t.PaidAt.IsZero() {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("transactions[%d].paidAt", i), Message: "is required"}
		}
		out = append(out, domain.Transaction{
			ID:                  t.ID,
			WalletID:            t.WalletID,
			Amount:              t.Amount.Decimal,
			PaidAt:              *t.PaidAt,
			Category:            t.Category,
			DestinationWalletID: t.DestinationWalletID,
			Description:         t.Description,
		})
	}
	return out, nil
}

func aggregateHandler(svc *service.InsightsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "Handler.Aggregate")
		defer span.End()

		query, err := parseInsightsQuery(r, svc.Location())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req aggregateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAggregateBytes)).Decode(&req); err != nil {
			logger.Debug("aggregate: bad body", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		txns, err := req.toDomain()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("transactions", len(txns)))

		result, err := svc.Aggregate(ctx, txns, query)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, toInsightsResponse(result))
	}
}

// ============================================================
// Query parsing
// ============================================================

// parseInsightsQuery reads wallet, from, to and tz. Dates are calendar days
// in tz (or defaultLoc): from is inclusive, to is inclusive of the whole day.
func parseInsightsQuery(r *http.Request, defaultLoc *time.Location) (domain.InsightsQuery, error) {
	q := r.URL.Query()
	var query domain.InsightsQuery

	loc := defaultLoc
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return query, &domain.ErrValidation{Field: "tz", Message: fmt.Sprintf("unknown time zone %q", tz)}
		}
		loc = l
		query.Location = l
	}
	if loc == nil {
		loc = time.UTC
	}

	if raw := q.Get("wallet"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return query, &domain.ErrValidation{Field: "wallet", Message: fmt.Sprintf("%q is not a valid wallet id", part)}
			}
			query.Filter.WalletIDs = append(query.Filter.WalletIDs, id.String())
		}
	}

	if v := q.Get("from"); v != "" {
		from, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return query, &domain.ErrValidation{Field: "from", Message: "expected YYYY-MM-DD"}
		}
		query.Filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return query, &domain.ErrValidation{Field: "to", Message: "expected YYYY-MM-DD"}
		}
		query.Filter.To = to.AddDate(0, 0, 1)
	}

	return query, nil
}

// requestLanguage picks the display language from ?lang= or Accept-Language.
// Empty means the service default.
func requestLanguage(r *http.Request) (string, error) {
	if v := r.URL.Query().Get("lang"); v != "" {
		tag, err := language.Parse(v)
		if err != nil {
			var ve language.ValueError
			if !errors.As(err, &ve) {
				return "", &domain.ErrValidation{Field: "lang", Message: fmt.Sprintf("invalid language tag %q", v)}
			}
		}
		return tag.String(), nil
	}

	if h := r.Header.Get("Accept-Language"); h != "" {
		tags, _, err := language.ParseAcceptLanguage(h)
		if err == nil && len(tags) > 0 {
			return tags[0].String(), nil
		}
	}
	return "", nil
}
