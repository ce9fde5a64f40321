package http

import (
	"net/http"

	"spendbook/internal/aggregate"
	"spendbook/internal/core"
	"spendbook/internal/export"
	"spendbook/internal/log"
)

type expenseList struct {
	Expenses []core.Expense `json:"expenses"`
	Count    int            `json:"count"`
	Total    core.Money     `json:"total"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q, err := parseExpenseQuery(r)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	expenses, err := aggregate.Query(s.store.Expenses(), q)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenseList{
		Expenses: expenses,
		Count:    len(expenses),
		Total:    aggregate.TotalAmount(expenses),
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, ok := s.store.Expense(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, log.OpRead, core.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	in := req.input()
	if err := in.Validate(); err != nil {
		s.writeError(w, r, log.OpValidate, err)
		return
	}

	e, err := s.store.AddExpense(r.Context(), in)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Expense created",
		log.NewFields().WithEntity("expense", e.ID).WithExpense(e.Title, e.Amount.Cents, len(e.CategoryIDs)).ToSlice()...)
	w.Header().Set("Location", "/api/expenses/"+e.ID)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expensePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	patch := req.patch()
	if err := patch.Validate(); err != nil {
		s.writeError(w, r, log.OpValidate, err)
		return
	}

	e, err := s.store.UpdateExpense(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportExpenses streams the filtered and sorted list as a CSV
// attachment.
func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	q, err := parseExpenseQuery(r)
	if err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}
	snap := s.store.Snapshot()
	expenses, err := aggregate.Query(snap.Expenses, q)
	if err != nil {
		s.writeError(w, r, log.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(s.now())+`"`)
	if err := export.WriteCSV(w, expenses, snap.Categories); err != nil {
		// Headers are gone; all that is left is to log it.
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "CSV export interrupted", err, log.ComponentExport, log.OpExport, nil)
	}
}
