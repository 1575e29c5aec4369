package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/services"
)

type (
	donationRequest = services.DonationInput
	fundingRequest  = services.FundingInput
)

type reviewRequest struct {
	Opinion string `json:"opinion"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: len(items)}
}

// recordRoutes mounts the same lifecycle routes for donations and fundings.
func (s *Server) recordRoutes(kind core.RecordKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", s.handleListRecords(kind))
		r.Post("/", s.handleSubmitRecord(kind))
		r.Get("/{id}", s.handleGetRecord(kind))
		r.Delete("/{id}", s.handleDeleteRecord(kind))
		r.Post("/{id}/{action}", s.handleReviewRecord(kind))
	}
}

func (s *Server) handleListRecords(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flt, err := ParseFilter(r.URL.Query())
		if err != nil {
			fail(w, r, log.OpList, err)
			return
		}

		ctx := r.Context()
		if kind == core.KindFunding {
			items, err := s.deps.Ledger.ListFundings(ctx, flt)
			if err != nil {
				fail(w, r, log.OpList, err)
				return
			}
			NewResponse().JSON(newList(items)).Write(w)
			return
		}
		items, err := s.deps.Ledger.ListDonations(ctx, flt)
		if err != nil {
			fail(w, r, log.OpList, err)
			return
		}
		NewResponse().JSON(newList(items)).Write(w)
	}
}

func (s *Server) handleSubmitRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var (
			record any
			err    error
		)
		if kind == core.KindFunding {
			var in fundingRequest
			if err := decodeJSON(w, r, &in); err != nil {
				BadRequestError(err.Error()).Write(w)
				return
			}
			sanitizeFunding(&in)
			record, err = s.deps.Ledger.SubmitFunding(ctx, in)
		} else {
			var in donationRequest
			if err := decodeJSON(w, r, &in); err != nil {
				BadRequestError(err.Error()).Write(w)
				return
			}
			sanitizeDonation(&in)
			record, err = s.deps.Ledger.SubmitDonation(ctx, in)
		}
		if err != nil {
			fail(w, r, log.OpCreate, err)
			return
		}
		NewResponse().Status(http.StatusCreated).JSON(record).Write(w)
	}
}

func (s *Server) getRecord(r *http.Request, kind core.RecordKind, id string) (any, error) {
	if kind == core.KindFunding {
		return s.deps.Ledger.GetFunding(r.Context(), id)
	}
	return s.deps.Ledger.GetDonation(r.Context(), id)
}

func (s *Server) handleGetRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.getRecord(r, kind, chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, log.OpRead, err)
			return
		}
		NewResponse().JSON(record).Write(w)
	}
}

func (s *Server) handleDeleteRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Ledger.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
			fail(w, r, log.OpDelete, err)
			return
		}
		NewResponse().Status(http.StatusNoContent).Write(w)
	}
}

// handleReviewRecord applies approve, reject or complete and returns the
// updated record. Reject needs {"opinion": "..."}.
func (s *Server) handleReviewRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		action, err := core.ParseReviewAction(chi.URLParam(r, "action"))
		if err != nil {
			NotFoundError("no such review action").Write(w)
			return
		}

		var in reviewRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &in); err != nil {
				BadRequestError(err.Error()).Write(w)
				return
			}
		}

		if err := s.deps.Ledger.Review(r.Context(), kind, id, action, sanitizeInput(in.Opinion)); err != nil {
			fail(w, r, log.OpReview, err)
			return
		}
		record, err := s.getRecord(r, kind, id)
		if err != nil {
			fail(w, r, log.OpRead, err)
			return
		}
		NewResponse().JSON(record).Write(w)
	}
}
