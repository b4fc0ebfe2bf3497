package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	qrcode "github.com/skip2/go-qrcode"

	"groupcast/internal/scheduler"
	"groupcast/internal/session"
	"groupcast/pkg/logx"
)

// handleQR serves the current scan code as a PNG data URL, matching what
// the front end renders in an <img>.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.sess.QR()
	if !ok {
		WriteError(w, http.StatusNotFound, "QR not ready")
		return
	}
	png, err := qrcode.Encode(raw, qrcode.Medium, 256)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "QR encode failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"qr": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.sess.State()
	_, qrReady := s.sess.QR()
	WriteJSON(w, http.StatusOK, map[string]bool{
		"ready":   st == session.StateReady,
		"qrReady": qrReady,
	})
}

type groupItem struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// handleGroups returns the live group list, or an empty array whenever the
// session cannot produce one. The front end always expects an array here.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	out := []groupItem{}
	if s.sess.State() == session.StateReady {
		groups, err := s.sess.ListGroups(r.Context())
		if err != nil {
			s.log.Warn("group listing failed", logx.Err(err))
		}
		for _, g := range groups {
			out = append(out, groupItem{Name: g.Name, ID: g.ID})
		}
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.sched.Snapshot(r.Context()))
}

type sendResponse struct {
	Status     string   `json:"status"`
	SavedImage string   `json:"savedImage"`
	Failed     []string `json:"failed,omitempty"`
}

// handleSendMessage accepts the multipart submission from the front end:
// `groups` (JSON array of names), `message`, `meetingLink`, `scheduleTime`
// and an optional `image` file.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var groups []string
	if err := json.Unmarshal([]byte(r.FormValue("groups")), &groups); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid group list")
		return
	}

	savedImage, attachmentPath, err := s.saveUpload(r)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	res, err := s.sched.Submit(r.Context(), scheduler.Request{
		GroupNames:     groups,
		MessageText:    r.FormValue("message"),
		MeetingLink:    r.FormValue("meetingLink"),
		AttachmentPath: attachmentPath,
		ScheduleTime:   r.FormValue("scheduleTime"),
	})
	if err != nil {
		// No job references the upload once the submission is rejected.
		if attachmentPath != "" {
			if rmErr := os.Remove(attachmentPath); rmErr != nil {
				s.log.Warn("failed to remove rejected upload",
					logx.String("path", attachmentPath), logx.Err(rmErr))
			}
		}
		if errors.Is(err, scheduler.ErrInvalidRequest) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := sendResponse{SavedImage: savedImage}
	if res.Scheduled {
		resp.Status = "scheduled"
	} else {
		resp.Status = "sent immediately"
		for _, g := range res.Groups {
			if g.Err != nil {
				resp.Failed = append(resp.Failed, g.GroupName)
			}
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}
