package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

// decimal is a JSON money value accepted as either a number (100.5) or a
// string ("100.50") and parsed to cents with half-up rounding.
type decimal struct {
	cents int64
}

func (d *decimal) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return err
	}
	d.cents = cents
	return nil
}

type (
	registerUserRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	userResponse struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	createTagRequest struct {
		UserID int64  `json:"user_id"`
		Tag    string `json:"tag"`
		Type   string `json:"type"`
	}

	tagResponse struct {
		ID     int64  `json:"id"`
		UserID int64  `json:"user_id"`
		Tag    string `json:"tag"`
		Type   string `json:"type"`
		Value  string `json:"value"`
	}

	createTransactionRequest struct {
		UserID int64    `json:"user_id"`
		TagID  int64    `json:"tag_id"`
		Value  *decimal `json:"value"`
		Date   string   `json:"date"`
		Time   string   `json:"time"`
		Note   string   `json:"note"`
	}

	// All fields optional; absent fields keep their stored values.
	updateTransactionRequest struct {
		TagID *int64   `json:"tag_id"`
		Value *decimal `json:"value"`
		Date  *string  `json:"date"`
		Time  *string  `json:"time"`
		Note  *string  `json:"note"`
	}

	transactionResponse struct {
		ID     int64  `json:"id"`
		UserID int64  `json:"user_id"`
		TagID  int64  `json:"tag_id"`
		Value  string `json:"value"`
		Date   string `json:"date"`
		Time   string `json:"time"`
		Note   string `json:"note,omitempty"`
	}

	summaryResponse struct {
		UserID  int64  `json:"user_id"`
		Month   int    `json:"month"`
		Year    int    `json:"year"`
		Income  string `json:"income"`
		Expense string `json:"expense"`
	}

	errorBody struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
)

func toUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func toTagResponse(t core.Tag) tagResponse {
	return tagResponse{
		ID:     t.ID,
		UserID: t.UserID,
		Tag:    t.Name,
		Type:   string(t.Kind),
		Value:  t.Value.Decimal(),
	}
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:     t.ID,
		UserID: t.UserID,
		TagID:  t.TagID,
		Value:  t.Value.Decimal(),
		Date:   t.Date.String(),
		Time:   t.Time.String(),
		Note:   t.Note,
	}
}

func toSummaryResponse(s core.MonthSummary) summaryResponse {
	return summaryResponse{
		UserID:  s.UserID,
		Month:   s.Month,
		Year:    s.Year,
		Income:  s.Income.Decimal(),
		Expense: s.Expense.Decimal(),
	}
}

// statusForKind maps error kinds to HTTP status codes.
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidArgument:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindConflict:
		return http.StatusConflict
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindFailedPrecondition:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusForKind(kind)

	var body errorBody
	body.Error.Kind = string(kind)
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs
		slog.ErrorContext(r.Context(), "Request failed",
			"url", r.URL.Path,
			"error", err)
		body.Error.Message = "internal error"
	} else {
		body.Error.Message = err.Error()
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Wrap(core.KindInvalidArgument, "malformed request body", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Ef(core.KindInvalidArgument, "invalid %s in path", name)
	}
	return id, nil
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.users.Register(r.Context(), services.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tag, err := s.ledger.CreateTag(r.Context(), req.UserID, req.Tag, core.Kind(req.Type))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTagResponse(tag))
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tags, err := s.ledger.ListTags(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, toTagResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	tagID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, r, core.E(core.KindInvalidArgument, "missing or invalid user_id query parameter"))
		return
	}

	if err := s.ledger.DeleteTag(r.Context(), userID, tagID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Value == nil {
		writeError(w, r, core.E(core.KindInvalidArgument, "value is required"))
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, core.Wrap(core.KindInvalidArgument, "invalid date", err))
		return
	}
	clock, err := core.ParseClockTime(req.Time)
	if err != nil {
		writeError(w, r, core.Wrap(core.KindInvalidArgument, "invalid time", err))
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), services.CreateTransactionParams{
		UserID: req.UserID,
		TagID:  req.TagID,
		Value:  core.Money{Cents: req.Value.cents},
		Date:   date,
		Time:   clock,
		Note:   req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var params services.UpdateTransactionParams
	params.TagID = req.TagID
	params.Note = req.Note
	if req.Value != nil {
		params.Value = &core.Money{Cents: req.Value.cents}
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, r, core.Wrap(core.KindInvalidArgument, "invalid date", err))
			return
		}
		params.Date = &date
	}
	if req.Time != nil {
		clock, err := core.ParseClockTime(*req.Time)
		if err != nil {
			writeError(w, r, core.Wrap(core.KindInvalidArgument, "invalid time", err))
			return
		}
		params.Time = &clock
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), id, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := s.ledger.ListMonthSummaries(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]summaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, toSummaryResponse(sum))
	}
	writeJSON(w, http.StatusOK, out)
}
