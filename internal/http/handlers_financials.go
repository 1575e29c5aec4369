package http

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"edufund/internal/cache"
	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/report"
)

const financialsKey = "all"

func (s *Server) financials(r *http.Request) ([]core.MonthlyFinancial, error) {
	return cache.GetOrLoad[[]core.MonthlyFinancial](s.financialsCache, financialsKey, func() ([]core.MonthlyFinancial, error) {
		return s.deps.Ledger.Financials(r.Context())
	})
}

func (s *Server) handleListFinancials(w http.ResponseWriter, r *http.Request) {
	fs, err := s.financials(r)
	if err != nil {
		fail(w, r, log.OpList, err)
		return
	}
	NewResponse().JSON(newList(fs)).Write(w)
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	fs, err := s.deps.Ledger.Recompute(r.Context())
	if err != nil {
		fail(w, r, log.OpRecompute, err)
		return
	}
	NewResponse().JSON(newList(fs)).Write(w)
}

// month resolves the {month} parameter against the cached financials.
func (s *Server) month(r *http.Request) (core.MonthlyFinancial, error) {
	month := chi.URLParam(r, "month")
	if !validMonth(month) {
		return core.MonthlyFinancial{}, core.ErrInvalidMonth
	}
	fs, err := s.financials(r)
	if err != nil {
		return core.MonthlyFinancial{}, err
	}
	mf, ok := core.FindMonth(fs, month)
	if !ok {
		return core.MonthlyFinancial{}, core.ErrMonthNotFound
	}
	return mf, nil
}

func (s *Server) handleGetFinancial(w http.ResponseWriter, r *http.Request) {
	mf, err := s.month(r)
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(mf).Write(w)
}

// handleExportFinancial downloads one month as csv (default) or txt.
func (s *Server) handleExportFinancial(w http.ResponseWriter, r *http.Request) {
	format := report.FormatCSV
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := report.ParseFormat(v)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		format = f
	}

	mf, err := s.month(r)
	if err != nil {
		fail(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, mf, s.deps.Ledger.Now()); err != nil {
		fail(w, r, log.OpExport, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Financial report exported",
		log.FieldOperation, log.OpExport,
		log.FieldMonth, mf.Month,
		"format", string(format),
		"bytes", buf.Len())
	NewResponse().Attachment(report.Filename(mf.Month, format), format.ContentType(), buf.Bytes()).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Ledger.Now()
	key := now.Format("2006-01-02")
	d, err := cache.GetOrLoad[core.Dashboard](s.dashboardCache, key, func() (core.Dashboard, error) {
		return s.deps.Ledger.Dashboard(r.Context(), now)
	})
	if err != nil {
		fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(d).Write(w)
}

func validMonth(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	if strings.IndexFunc(s[:4]+s[5:], func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return false
	}
	return s[5:] >= "01" && s[5:] <= "12"
}
