package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spotter-ai/spotter/pkg/core/live"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id, err := s.BeginSession("models/gemini-2.0-flash-live-001")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if id == "" {
		t.Fatalf("BeginSession returned empty id")
	}

	if err := s.AppendUtterance(id, "what is on the board"); err != nil {
		t.Fatalf("AppendUtterance: %v", err)
	}
	if err := s.AppendUtterance(id, "circle the knight"); err != nil {
		t.Fatalf("AppendUtterance: %v", err)
	}

	objects := []live.DetectedObject{
		{Name: "knight", Box: live.BoundingBox{X: 0.1, Y: 0.2, Width: 0.05, Height: 0.08}},
		{Name: "rook", Box: live.BoundingBox{X: 0.6, Y: 0.4, Width: 0.04, Height: 0.07}},
	}
	if err := s.RecordDetections(id, objects); err != nil {
		t.Fatalf("RecordDetections: %v", err)
	}

	if err := s.EndSession(id); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	log, err := s.SessionLog(id)
	if err != nil {
		t.Fatalf("SessionLog: %v", err)
	}
	if log.Session.Model != "models/gemini-2.0-flash-live-001" {
		t.Errorf("Model = %q", log.Session.Model)
	}
	if log.Session.StartedAt.IsZero() {
		t.Errorf("StartedAt is zero")
	}
	if log.Session.EndedAt.IsZero() {
		t.Errorf("EndedAt is zero after EndSession")
	}

	if len(log.Utterances) != 2 {
		t.Fatalf("utterances = %d, want 2", len(log.Utterances))
	}
	if log.Utterances[0].Text != "what is on the board" || log.Utterances[1].Text != "circle the knight" {
		t.Errorf("utterances out of order: %+v", log.Utterances)
	}

	if len(log.Detections) != 2 {
		t.Fatalf("detections = %d, want 2", len(log.Detections))
	}
	if log.Detections[0].Name != "knight" || log.Detections[0].Box.Width != 0.05 {
		t.Errorf("first detection = %+v", log.Detections[0])
	}
	if log.Detections[1].Name != "rook" {
		t.Errorf("second detection = %+v", log.Detections[1])
	}

	sessions, err := s.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != id {
		t.Fatalf("ListSessions = %+v, want the one session", sessions)
	}
}

func TestStore_EndSession(t *testing.T) {
	s := newTestStore(t)

	id, err := s.BeginSession("models/gemini-2.0-flash-live-001")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	if err := s.EndSession(id); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	first, err := s.SessionLog(id)
	if err != nil {
		t.Fatalf("SessionLog: %v", err)
	}

	// A second end keeps the original stamp.
	if err := s.EndSession(id); err != nil {
		t.Fatalf("second EndSession: %v", err)
	}
	second, err := s.SessionLog(id)
	if err != nil {
		t.Fatalf("SessionLog: %v", err)
	}
	if !first.Session.EndedAt.Equal(second.Session.EndedAt) {
		t.Errorf("EndedAt changed on repeat end: %v vs %v", first.Session.EndedAt, second.Session.EndedAt)
	}

	if err := s.EndSession("no-such-id"); err == nil {
		t.Fatalf("expected error for unknown session id")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestStore_BlankUtteranceSkipped(t *testing.T) {
	s := newTestStore(t)

	id, err := s.BeginSession("m")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if err := s.AppendUtterance(id, "   "); err != nil {
		t.Fatalf("AppendUtterance: %v", err)
	}

	log, err := s.SessionLog(id)
	if err != nil {
		t.Fatalf("SessionLog: %v", err)
	}
	if len(log.Utterances) != 0 {
		t.Fatalf("utterances = %+v, want none for blank text", log.Utterances)
	}
}

func TestStore_RecordDetectionsEmptyIsNoOp(t *testing.T) {
	s := newTestStore(t)

	id, err := s.BeginSession("m")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if err := s.RecordDetections(id, nil); err != nil {
		t.Fatalf("RecordDetections(nil): %v", err)
	}

	log, err := s.SessionLog(id)
	if err != nil {
		t.Fatalf("SessionLog: %v", err)
	}
	if len(log.Detections) != 0 {
		t.Fatalf("detections = %+v, want none", log.Detections)
	}
}

func TestStore_SessionLogUnknownID(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.SessionLog("missing"); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestStore_ListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	older, err := s.BeginSession("m1")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	newer, err := s.BeginSession("m2")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	sessions, err := s.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}
	if sessions[0].ID != newer || sessions[1].ID != older {
		t.Fatalf("order = [%s %s], want newest first", sessions[0].ID, sessions[1].ID)
	}

	one, err := s.ListSessions(1)
	if err != nil {
		t.Fatalf("ListSessions(1): %v", err)
	}
	if len(one) != 1 || one[0].ID != newer {
		t.Fatalf("ListSessions(1) = %+v, want newest only", one)
	}
}

func TestStore_OpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "archive.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open with missing directory: %v", err)
	}
	defer s.Close()

	if _, err := s.BeginSession("m"); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
}
