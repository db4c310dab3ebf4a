package http

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"faturas/internal/documents"
	"faturas/internal/log"
	"faturas/internal/selection"
	"faturas/internal/sources"
)

// libraryStatus is the JSON form of a resolver status.
type libraryStatus struct {
	State       string   `json:"state"`
	AccountID   string   `json:"accountId,omitempty"`
	Months      []string `json:"months"`
	MonthsReady bool     `json:"monthsReady"`
	Month       string   `json:"month,omitempty"`
	Filename    string   `json:"filename,omitempty"`
}

func newLibraryStatus(st selection.Status) libraryStatus {
	out := libraryStatus{
		State:       st.State.String(),
		AccountID:   st.AccountID,
		Months:      st.Months,
		MonthsReady: st.MonthsReady,
		Month:       st.Month,
	}
	if out.Months == nil {
		out.Months = []string{}
	}
	if st.State == selection.Resolved {
		out.Filename = st.Key.Filename()
	}
	return out
}

func (s *Server) handleLibraryStatus(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessionFor(w, r)
	NewHTMXResponse().BodyJSON(newLibraryStatus(sess.resolver.Status())).Write(w)
}

// handleLibraryAccount chooses the account and computes its month index.
// htmx callers get the month picker fragment.
func (s *Server) handleLibraryAccount(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	account, err := NewRequestBodyParser(r).RequiredField("account")
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}

	sess := s.sessionFor(w, r)
	if err := sess.resolver.ChooseAccount(account); err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	months, err := sess.resolver.ComputeMonths(r.Context(), account)
	if err != nil {
		if !errors.Is(err, selection.ErrStaleMonths) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Month index query failed",
				log.FieldAccountID, account, log.FieldError, err.Error())
		}
		errorResponse(r, err).Write(w)
		return
	}

	resp := NewHTMXResponse().TriggerMonthsReady(account, len(months))
	if isHTMX(r) && s.templates != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		resp.Write(w)
		data := struct {
			Account string
			Months  []string
		}{Account: account, Months: months}
		if err := s.templates.ExecuteTemplate(w, "months.html", data); err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution error",
				log.FieldError, err.Error(), "template", "months.html")
		}
		return
	}
	resp.BodyJSON(newLibraryStatus(sess.resolver.Status())).Write(w)
}

func (s *Server) handleLibraryMonth(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	month, err := NewRequestBodyParser(r).RequiredField("month")
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	sess := s.sessionFor(w, r)
	if err := sess.resolver.ChooseMonth(month); err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	st := sess.resolver.Status()
	NewHTMXResponse().
		TriggerMonthChosen(st.AccountID, st.Month).
		BodyJSON(newLibraryStatus(st)).
		Write(w)
}

// handleLibraryDownload resolves the session's selection and streams the
// invoice PDF as an attachment. A "month" field, when present, is chosen
// first so the page can post the picker and the button as one form.
func (s *Server) handleLibraryDownload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	sess := s.sessionFor(w, r)
	if month := parser.Get("month"); month != "" {
		if err := sess.resolver.ChooseMonth(month); err != nil {
			errorResponse(r, err).Write(w)
			return
		}
	}

	key, err := sess.resolver.Resolve()
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	if s.downloader == nil {
		errorResponse(r, sources.ErrDocumentsUnavailable).Write(w)
		return
	}

	st := sess.resolver.Status()
	req := documents.Request{Key: key, AccountID: st.AccountID, BillingMonth: st.Month}
	if _, err := s.downloader.Download(r.Context(), req, attachmentSink(w)); err != nil {
		errorResponse(r, err).Write(w)
		return
	}
}

// attachmentSink writes the document as the response body. Nothing is
// written before Save, so a failed fetch can still answer with an error.
func attachmentSink(w http.ResponseWriter) documents.Sink {
	return documents.SinkFunc(func(_ context.Context, filename string, data []byte) error {
		h := w.Header()
		h.Set("Content-Type", "application/pdf")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		h.Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(data)
		return err
	})
}
