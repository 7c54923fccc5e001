package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/notekeeper/internal/metrics"
	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/view"
)

// noteForm はノート作成・編集フォームの入力値。
type noteForm struct {
	Title   string `validate:"required"`
	Content string `validate:"required"`
}

// NoteHandler はノートCRUDのHTTPハンドラー。
// すべての操作はセッションのユーザーIDで所有者を絞り込む。
type NoteHandler struct {
	notes    NoteServiceInterface
	flash    *middleware.Flash
	renderer PageRenderer
	metrics  metrics.MetricsCollector
	validate *validator.Validate
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(notes NoteServiceInterface, flash *middleware.Flash, renderer PageRenderer, m metrics.MetricsCollector) *NoteHandler {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &NoteHandler{
		notes:    notes,
		flash:    flash,
		renderer: renderer,
		metrics:  m,
		validate: newValidator(),
	}
}

// List はユーザーのノート一覧と作成フォームを表示する。
// GET /notes
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())

	notes, err := h.notes.ListByOwner(r.Context(), ownerID)
	if err != nil {
		slog.Error("failed to list notes",
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
		h.flash.Redirect(w, r, "/dashboard", middleware.ErrorNotice(appErrorMessage(err, "Error retrieving notes")))
		return
	}

	h.renderer.Render(w, r, http.StatusOK, view.PageNotes, view.Page{Title: "Notes", Notes: notes})
}

// Create はノートを作成する。
// POST /notes/create
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())

	form, ok := h.readForm(r)
	if !ok {
		h.metrics.RecordNoteOperation(metrics.NoteOpCreate, metrics.OutcomeInvalid)
		h.flash.Redirect(w, r, "/notes", middleware.ErrorNotice(msgNoteFieldsMissing))
		return
	}

	if _, err := h.notes.Create(r.Context(), ownerID, form.Title, form.Content); err != nil {
		h.failNoteOperation(w, r, metrics.NoteOpCreate, err, "Error creating note")
		return
	}

	h.metrics.RecordNoteOperation(metrics.NoteOpCreate, metrics.OutcomeSuccess)
	h.flash.Redirect(w, r, "/notes", middleware.SuccessNotice("Note created successfully"))
}

// EditForm は所有するノートの編集フォームを表示する。
// 存在しない場合と他ユーザー所有の場合は区別せず一覧へ戻す。
// GET /notes/edit/{id}
func (h *NoteHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())

	n, err := h.notes.FindOwned(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		slog.Error("failed to find note", slog.String("error", err.Error()))
		h.flash.Redirect(w, r, "/notes", middleware.ErrorNotice(appErrorMessage(err, "Error retrieving note")))
		return
	}
	if n == nil {
		h.flash.Redirect(w, r, "/notes", middleware.ErrorNotice(appErrorMessage(model.NewNotFoundOrNotOwnedError(), "")))
		return
	}

	h.renderer.Render(w, r, http.StatusOK, view.PageEdit, view.Page{Title: "Edit note", Note: n})
}

// Update は所有するノートを上書き更新する。
// POST /notes/edit/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())

	form, ok := h.readForm(r)
	if !ok {
		h.metrics.RecordNoteOperation(metrics.NoteOpUpdate, metrics.OutcomeInvalid)
		h.flash.Redirect(w, r, "/notes", middleware.ErrorNotice(msgNoteFieldsMissing))
		return
	}

	n, err := h.notes.Update(r.Context(), chi.URLParam(r, "id"), ownerID, form.Title, form.Content)
	if err != nil {
		h.failNoteOperation(w, r, metrics.NoteOpUpdate, err, "Error updating note")
		return
	}
	if n == nil {
		h.failNoteOperation(w, r, metrics.NoteOpUpdate, model.NewNotFoundOrNotOwnedError(), "")
		return
	}

	h.metrics.RecordNoteOperation(metrics.NoteOpUpdate, metrics.OutcomeSuccess)
	h.flash.Redirect(w, r, "/notes", middleware.SuccessNotice("Note updated successfully"))
}

// Delete は所有するノートを削除する。
// GET /notes/delete/{id}, POST /notes/delete/{id}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())

	removed, err := h.notes.Delete(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		h.failNoteOperation(w, r, metrics.NoteOpDelete, err, "Error deleting note")
		return
	}
	if !removed {
		h.failNoteOperation(w, r, metrics.NoteOpDelete, model.NewNotFoundOrNotOwnedError(), "")
		return
	}

	h.metrics.RecordNoteOperation(metrics.NoteOpDelete, metrics.OutcomeSuccess)
	h.flash.Redirect(w, r, "/notes", middleware.SuccessNotice("Note deleted successfully"))
}

// readForm はタイトルと本文を読み取り、両方が空でないことを検証する。
func (h *NoteHandler) readForm(r *http.Request) (noteForm, bool) {
	form := noteForm{
		Title:   formValue(r, "title"),
		Content: formValue(r, "content"),
	}
	if err := h.validate.Struct(form); err != nil {
		return form, false
	}
	return form, true
}

// failNoteOperation はエラーを通知に変換して一覧へ戻す。
func (h *NoteHandler) failNoteOperation(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	switch {
	case model.HasCode(err, model.ErrCodeValidation):
		h.metrics.RecordNoteOperation(op, metrics.OutcomeInvalid)
		h.flash.Redirect(w, r, "/notes", middleware.ErrorNotice(msgNoteFieldsMissing))
		return
	case model.HasCode(err, model.ErrCodeNotFoundOrNotOwned):
		h.metrics.RecordNoteOperation(op, metrics.OutcomeNotFound)
		h.flash.Redirect(w, r, "/notes", middleware.ErrorNotice(appErrorMessage(err, fallback)))
		return
	}

	slog.Error("note operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	h.metrics.RecordNoteOperation(op, metrics.OutcomeError)
	h.flash.Redirect(w, r, "/notes", middleware.ErrorNotice(appErrorMessage(err, fallback)))
}
