package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/registry"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/session"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "", s.Sessions.Status())
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.Sessions.Start(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Webcam started", info)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Stop(); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Webcam stopped", s.Sessions.Status())
}

func (s *Server) latestFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.Sessions.LatestFrame()
	if !ok {
		writeFail(w, http.StatusNotFound, CodeNoFrame, "No frame captured yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

// readUpload returns the named multipart file and its original name.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)
	if err := r.ParseMultipartForm(s.MaxUpload); err != nil {
		writeFail(w, http.StatusBadRequest, CodeInvalidInput, "Invalid upload: "+err.Error())
		return nil, "", false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		writeFail(w, http.StatusBadRequest, CodeInvalidInput, fmt.Sprintf("Missing required file: %s", field))
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeFail(w, http.StatusBadRequest, CodeInvalidInput, "Could not read upload")
		return nil, "", false
	}
	return data, header.Filename, true
}

func (s *Server) matchPicture(w http.ResponseWriter, r *http.Request) {
	data, name, ok := s.readUpload(w, r, "image")
	if !ok {
		return
	}

	res, err := s.NewOneShot().Run(r.Context(), name, data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := "Picture processed"
	if res.ResultPath != "" {
		msg = "Processed image saved: /api/results/" + filepath.Base(res.ResultPath)
	}
	writeOK(w, msg, res)
}

func (s *Server) serveResult(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeFail(w, http.StatusBadRequest, CodeInvalidInput, "Invalid result name")
		return
	}
	path := filepath.Join(s.ResultsDir, name)
	if _, err := os.Stat(path); err != nil {
		writeFail(w, http.StatusNotFound, CodeNotFound, "Result not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) listSightings(w http.ResponseWriter, r *http.Request) {
	sightings, err := s.Registry.ListCurrentWanted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sightings == nil {
		sightings = []storage.Sighting{}
	}
	writeOK(w, "", sightings)
}

func (s *Server) markFound(w http.ResponseWriter, r *http.Request) {
	identity, err := s.Registry.MarkFound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Criminal status updated to found", identity)
}

func (s *Server) listCitizens(w http.ResponseWriter, r *http.Request) {
	var kind storage.Kind
	if q := r.URL.Query().Get("kind"); q != "" {
		k, err := storage.ParseKind(q)
		if err != nil {
			writeFail(w, http.StatusBadRequest, CodeInvalidInput, "Invalid kind: must be criminal or missing")
			return
		}
		kind = k
	}
	identities, err := s.Registry.ListIdentities(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if identities == nil {
		identities = []storage.Identity{}
	}
	writeOK(w, "", identities)
}

func (s *Server) registerCitizen(w http.ResponseWriter, r *http.Request) {
	data, name, ok := s.readUpload(w, r, "image")
	if !ok {
		return
	}

	reg := registry.Registration{
		NationalID: r.FormValue("national_id"),
		Name:       r.FormValue("name"),
		Address:    r.FormValue("address"),
		Kind:       r.FormValue("kind"),
		Filename:   name,
	}
	identity, err := s.Registry.Register(r.Context(), reg, bytes.NewReader(data))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: "Citizen successfully added", Data: identity})
}

func (s *Server) setWanted(w http.ResponseWriter, r *http.Request) {
	identity, err := s.Registry.SetWanted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Status updated to Wanted", identity)
}

func (s *Server) setFree(w http.ResponseWriter, r *http.Request) {
	identity, err := s.Registry.SetFree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "Status updated to Free", identity)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Registry.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, "", st)
}

func (s *Server) clearAll(w http.ResponseWriter, r *http.Request) {
	var report registry.ClearReport
	err := s.Sessions.WhileIdle(func() error {
		var err error
		report, err = s.Registry.ClearAll(r.Context())
		return err
	})
	if err != nil {
		if code := session.CodeOf(err); code == session.CodeAlreadyRunning || code == session.CodeBusy {
			writeFail(w, http.StatusConflict, string(code), "Stop the capture session before clearing records")
			return
		}
		writeError(w, r, err)
		return
	}
	writeOK(w, "All records cleared", report)
}
