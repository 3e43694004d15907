package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/auth"
	"hostelhub.org/internal/authz"
	"hostelhub.org/internal/repo"
)

const actionDeleteRoom = "delete_room"

type roomRequest struct {
	TenantID string `json:"tenant_id"`
	Number   string `json:"number"`
	Floor    int    `json:"floor"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

type roomPatch struct {
	TenantID *string `json:"tenant_id"`
	Number   *string `json:"number"`
	Floor    *int    `json:"floor"`
	Capacity *int    `json:"capacity"`
	Status   *string `json:"status"`
}

type complaintRequest struct {
	TenantID string  `json:"tenant_id"`
	RoomID   *string `json:"room_id"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
}

func validRoomStatus(s string) bool {
	switch s {
	case repo.RoomAvailable, repo.RoomOccupied, repo.RoomMaintenance:
		return true
	}
	return false
}

func listOptions(r *http.Request) (repo.ListOptions, error) {
	q := r.URL.Query()
	limit, err := parseBoundedInt("limit", q.Get("limit"), 50, 1, 200)
	if err != nil {
		return repo.ListOptions{}, err
	}
	offset, err := parseBoundedInt("offset", q.Get("offset"), 0, 0, 1<<20)
	if err != nil {
		return repo.ListOptions{}, err
	}
	opts := repo.ListOptions{Limit: limit, Offset: offset, Where: map[string]any{}}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		opts.Where["status"] = s
	}
	return opts, nil
}

func (a *API) rooms(r *http.Request, perm auth.Permission) (*repo.Repository[repo.Room, *repo.Room], auth.Principal, error) {
	p, scope, err := caller(r.Context())
	if err != nil {
		return nil, auth.Principal{}, err
	}
	if a.domain == nil {
		return nil, auth.Principal{}, apperr.Infra(fmt.Errorf("domain store not configured"))
	}
	if perm != "" {
		if err := authz.RequirePermission(p, perm); err != nil {
			return nil, auth.Principal{}, err
		}
	}
	return repo.Rooms(a.domain, scope), p, nil
}

func (a *API) complaints(r *http.Request, perm auth.Permission) (*repo.Repository[repo.Complaint, *repo.Complaint], auth.Principal, error) {
	p, scope, err := caller(r.Context())
	if err != nil {
		return nil, auth.Principal{}, err
	}
	if a.domain == nil {
		return nil, auth.Principal{}, apperr.Infra(fmt.Errorf("domain store not configured"))
	}
	if err := authz.RequirePermission(p, perm); err != nil {
		return nil, auth.Principal{}, err
	}
	return repo.Complaints(a.domain, scope), p, nil
}

func (a *API) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, _, err := a.rooms(r, auth.PermRoomRead)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	list, err := rooms.List(r.Context(), opts)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": list})
}

func (a *API) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rooms, _, err := a.rooms(r, auth.PermRoomRead)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	room, err := rooms.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	rooms, _, err := a.rooms(r, auth.PermRoomWrite)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	room := &repo.Room{
		TenantID: strings.TrimSpace(req.TenantID),
		Number:   strings.TrimSpace(req.Number),
		Floor:    req.Floor,
		Capacity: req.Capacity,
		Status:   req.Status,
	}
	if room.Number == "" {
		writeAppError(w, r, apperr.Invalid("number is required"))
		return
	}
	if room.Capacity <= 0 {
		room.Capacity = 1
	}
	if room.Status != "" && !validRoomStatus(room.Status) {
		writeAppError(w, r, apperr.Invalid("unknown room status %q", room.Status))
		return
	}
	if err := rooms.Create(r.Context(), room); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/rooms/%s", room.ID))
	writeJSON(w, http.StatusCreated, room)
}

func (a *API) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	rooms, _, err := a.rooms(r, auth.PermRoomWrite)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var patch roomPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeAppError(w, r, err)
		return
	}
	room, err := rooms.Update(r.Context(), r.PathValue("id"), func(room *repo.Room) error {
		if patch.TenantID != nil {
			room.TenantID = strings.TrimSpace(*patch.TenantID)
		}
		if patch.Number != nil {
			room.Number = strings.TrimSpace(*patch.Number)
			if room.Number == "" {
				return apperr.Invalid("number must not be empty")
			}
		}
		if patch.Floor != nil {
			room.Floor = *patch.Floor
		}
		if patch.Capacity != nil {
			if *patch.Capacity <= 0 {
				return apperr.Invalid("capacity must be positive")
			}
			room.Capacity = *patch.Capacity
		}
		if patch.Status != nil {
			if !validRoomStatus(*patch.Status) {
				return apperr.Invalid("unknown room status %q", *patch.Status)
			}
			room.Status = *patch.Status
		}
		return nil
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (a *API) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	rooms, p, err := a.rooms(r, "")
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	room, err := rooms.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	err = a.authorizeGated(r.Context(), p, auth.PermRoomDelete, authz.Action{
		Name:         actionDeleteRoom,
		ResourceType: "room",
		ResourceID:   room.ID,
		TenantID:     room.TenantID,
		Details:      map[string]any{"number": room.Number},
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if err := rooms.Delete(r.Context(), room.ID); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	complaints, _, err := a.complaints(r, auth.PermComplaintRead)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if roomID := strings.TrimSpace(r.URL.Query().Get("room_id")); roomID != "" {
		opts.Where["room_id"] = roomID
	}
	list, err := complaints.List(r.Context(), opts)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"complaints": list})
}

func (a *API) handleGetComplaint(w http.ResponseWriter, r *http.Request) {
	complaints, _, err := a.complaints(r, auth.PermComplaintRead)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	c, err := complaints.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleCreateComplaint(w http.ResponseWriter, r *http.Request) {
	complaints, p, err := a.complaints(r, auth.PermComplaintCreate)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	var req complaintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	c := &repo.Complaint{
		TenantID: strings.TrimSpace(req.TenantID),
		RoomID:   req.RoomID,
		AuthorID: p.ID,
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
	}
	if c.Title == "" {
		writeAppError(w, r, apperr.Invalid("title is required"))
		return
	}
	if c.RoomID != nil {
		rooms, _, err := a.rooms(r, "")
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		room, err := rooms.Get(r.Context(), *c.RoomID)
		if err != nil {
			writeAppError(w, r, apperr.Invalid("room_id does not name a room in scope"))
			return
		}
		if c.TenantID == "" {
			c.TenantID = room.TenantID
		} else if c.TenantID != room.TenantID {
			writeAppError(w, r, apperr.Invalid("room belongs to another tenant"))
			return
		}
	}
	if err := complaints.Create(r.Context(), c); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/complaints/%s", c.ID))
	writeJSON(w, http.StatusCreated, c)
}
