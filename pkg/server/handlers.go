package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ammusto/tafarru3/pkg/codec"
	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/store"
)

// maxBodyBytes bounds request bodies, including CSV uploads.
const maxBodyBytes = 32 << 20

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Error struct {
		Code    apperr.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

type opResponse struct {
	Applied bool   `json:"applied"`
	Version uint64 `json:"version"`
	ID      string `json:"id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperr.GetCode(err)
	if code == "" {
		code = apperr.ErrCodeInternal
	}
	status := apperr.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	var body errorBody
	body.Error.Code = code
	body.Error.Message = apperr.UserMessage(err)
	writeJSON(w, status, body)
}

func (s *Server) writeOp(w http.ResponseWriter, applied bool, id string) {
	writeJSON(w, http.StatusOK, opResponse{
		Applied: applied,
		Version: s.editor.Store.State().Version,
		ID:      id,
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidInput, err, "invalid request body")
	}
	return nil
}

// =============================================================================
// State and documents
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.editor.Store.State())
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := codec.WriteJSON(&buf, s.editor.Store.State().Document()); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.ImportJSON(r.Context(), io.LimitReader(r.Body, maxBodyBytes)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, true, "")
}

func (s *Server) handleClearDocument(w http.ResponseWriter, r *http.Request) {
	s.editor.Reset()
	s.writeOp(w, true, "")
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.editor.ExportCSV(r.Context(), &buf); err != nil {
		s.writeError(w, err)
		return
	}
	name := s.editor.Store.State().ProjectName
	if name == "" {
		name = "diagram"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sanitizeFilename(name)+`.csv"`)
	w.Write(buf.Bytes())
}

type importResponse struct {
	Nodes   int  `json:"nodes"`
	Edges   int  `json:"edges"`
	Legacy  bool `json:"legacy"`
	LaidOut bool `json:"laidOut"`
	Dropped int  `json:"dropped"`
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	res, err := s.editor.ImportCSV(r.Context(), io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		Nodes:   len(res.Document.Nodes),
		Edges:   len(res.Document.Edges),
		Legacy:  res.Legacy,
		LaidOut: res.LaidOut,
		Dropped: res.Dropped,
	})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := codec.WriteTemplate(&buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="template.csv"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	hit, err := s.editor.AutoLayout(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": true,
		"cached":  hit,
		"version": s.editor.Store.State().Version,
	})
}

type keyRequest struct {
	Chord       string `json:"chord"`
	InTextField bool   `json:"inTextField"`
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	action, err := s.editor.HandleKey(r.Context(), req.Chord, req.InTextField)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action":  action,
		"version": s.editor.Store.State().Version,
	})
}

type projectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := apperr.ValidateProjectName(req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.SetProjectName(req.Name), "")
}

// =============================================================================
// Nodes
// =============================================================================

type addNodeRequest struct {
	Position graph.Position  `json:"position"`
	Size     *graph.Size     `json:"size,omitempty"`
	Data     *graph.NodeData `json:"data,omitempty"`
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id := s.editor.Store.AddNode(store.NodeSpec{Position: req.Position, Size: req.Size, Data: req.Data})
	s.writeOp(w, id != "", id)
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type updateNodesRequest struct {
	IDs   []string        `json:"ids"`
	Patch graph.NodePatch `json:"patch"`
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	var patch graph.NodePatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.UpdateNode(chi.URLParam(r, "id"), patch), "")
}

func (s *Server) handleUpdateNodes(w http.ResponseWriter, r *http.Request) {
	var req updateNodesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.UpdateNodes(req.IDs, req.Patch), "")
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	s.writeOp(w, s.editor.Store.DeleteNodes([]string{chi.URLParam(r, "id")}), "")
}

func (s *Server) handleDeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.DeleteNodes(req.IDs), "")
}

func (s *Server) handleMoveNode(w http.ResponseWriter, r *http.Request) {
	var pos graph.Position
	if err := decodeBody(r, &pos); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.MoveNode(chi.URLParam(r, "id"), pos), "")
}

type moveNodesRequest struct {
	Positions map[string]graph.Position `json:"positions"`
}

func (s *Server) handleMoveNodes(w http.ResponseWriter, r *http.Request) {
	var req moveNodesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.MoveNodes(req.Positions), "")
}

// handleResizeNode accepts a size object, or null to return the node to
// automatic sizing.
func (s *Server) handleResizeNode(w http.ResponseWriter, r *http.Request) {
	var size *graph.Size
	if err := decodeBody(r, &size); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.ResizeNode(chi.URLParam(r, "id"), size), "")
}

type alignRequest struct {
	IDs       []string        `json:"ids"`
	Alignment store.Alignment `json:"alignment"`
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	var req alignRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.AlignNodes(req.IDs, req.Alignment), "")
}

type distributeRequest struct {
	IDs  []string   `json:"ids"`
	Axis store.Axis `json:"axis"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.DistributeNodes(req.IDs, req.Axis), "")
}

// =============================================================================
// Edges
// =============================================================================

type connectRequest struct {
	Source       string          `json:"source"`
	Target       string          `json:"target"`
	SourceHandle graph.Handle    `json:"sourceHandle"`
	TargetHandle graph.Handle    `json:"targetHandle"`
	Data         *graph.EdgeData `json:"data,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id, ok := s.editor.Store.Connect(store.ConnectSpec{
		Source:       req.Source,
		Target:       req.Target,
		SourceHandle: req.SourceHandle,
		TargetHandle: req.TargetHandle,
		Data:         req.Data,
	})
	s.writeOp(w, ok, id)
}

type updateEdgesRequest struct {
	IDs   []string        `json:"ids"`
	Patch graph.EdgePatch `json:"patch"`
}

func (s *Server) handleUpdateEdge(w http.ResponseWriter, r *http.Request) {
	var patch graph.EdgePatch
	if err := decodeBody(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.UpdateEdge(chi.URLParam(r, "id"), patch), "")
}

func (s *Server) handleUpdateEdges(w http.ResponseWriter, r *http.Request) {
	var req updateEdgesRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.UpdateEdges(req.IDs, req.Patch), "")
}

func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	s.writeOp(w, s.editor.Store.DeleteEdges([]string{chi.URLParam(r, "id")}), "")
}

func (s *Server) handleDeleteEdges(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.DeleteEdges(req.IDs), "")
}

// =============================================================================
// Selection, mode, grid
// =============================================================================

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var sel graph.Selection
	if err := decodeBody(r, &sel); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, s.editor.Store.SetSelection(sel), "")
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.writeOp(w, s.editor.Store.ClearSelection(), "")
}

func (s *Server) handleDeleteSelected(w http.ResponseWriter, r *http.Request) {
	s.writeOp(w, s.editor.Store.DeleteSelected(), "")
}

type modeRequest struct {
	Mode graph.Mode `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if !req.Mode.Valid() {
		s.writeError(w, apperr.New(apperr.ErrCodeInvalidInput, "unknown mode %q", req.Mode))
		return
	}
	s.writeOp(w, s.editor.Store.SetMode(req.Mode), "")
}

type gridRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleGrid sets the grid flag, or toggles it when enabled is omitted.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	var req gridRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Enabled == nil {
		s.writeOp(w, s.editor.Store.ToggleGrid(), "")
		return
	}
	s.writeOp(w, s.editor.Store.SetGridEnabled(*req.Enabled), "")
}

// =============================================================================
// History
// =============================================================================

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.editor.History.Status())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.writeOp(w, s.editor.History.Undo(), "")
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.writeOp(w, s.editor.History.Redo(), "")
}

func (s *Server) handleBeginInteraction(w http.ResponseWriter, r *http.Request) {
	s.editor.History.BeginInteraction()
	writeJSON(w, http.StatusOK, s.editor.History.Status())
}

func (s *Server) handleEndInteraction(w http.ResponseWriter, r *http.Request) {
	s.editor.History.EndInteraction()
	writeJSON(w, http.StatusOK, s.editor.History.Status())
}

// =============================================================================
// Sessions
// =============================================================================

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.editor.Sessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.SaveSession(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, true, "")
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.OpenSession(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeOp(w, true, "")
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.editor.DeleteSession(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '"', '\\', '/', ':', '*', '?', '<', '>', '|':
			out = append(out, '_')
		default:
			if r < 0x20 {
				continue
			}
			out = append(out, r)
		}
	}
	return string(out)
}
