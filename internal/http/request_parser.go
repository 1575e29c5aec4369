// This file implements the helpers that turn request bodies and query
// strings into service inputs.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"edufund/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body larger than %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
			return err
		default:
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

// ParseFilter reads the status and q query parameters. An empty status or
// "all" means no status filter.
func ParseFilter(query url.Values) (core.Filter, error) {
	flt := core.Filter{Keyword: sanitizeInput(query.Get("q"))}
	status := strings.TrimSpace(query.Get("status"))
	if status == "" || strings.EqualFold(status, "all") {
		return flt, nil
	}
	st, err := core.ParseStatus(status)
	if err != nil {
		return core.Filter{}, err
	}
	flt.Status = st
	return flt, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims surrounding whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func sanitizeDonation(in *donationRequest) {
	in.DonorName = sanitizeInput(in.DonorName)
	in.ContactPhone = sanitizeInput(in.ContactPhone)
	in.IDNumber = sanitizeInput(in.IDNumber)
	in.Purpose = sanitizeInput(in.Purpose)
	in.Notes = sanitizeInput(in.Notes)
	in.Certificate = sanitizeInput(in.Certificate)
}

func sanitizeFunding(in *fundingRequest) {
	in.InstitutionName = sanitizeInput(in.InstitutionName)
	in.Purpose = sanitizeInput(in.Purpose)
	in.Description = sanitizeInput(in.Description)
	for i := range in.BudgetItems {
		in.BudgetItems[i].Item = sanitizeInput(in.BudgetItems[i].Item)
		in.BudgetItems[i].Description = sanitizeInput(in.BudgetItems[i].Description)
	}
}
