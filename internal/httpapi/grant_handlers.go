package httpapi

import (
	"net/http"
	"strings"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

// grantTokenHeader carries a bind token in place of an admin session. The
// token alone authorizes one grant or topic-permission creation for the
// application it names.
const grantTokenHeader = "X-Grant-Token"

type createGrantRequest struct {
	Name          string `json:"name"`
	ApplicationID int64  `json:"application_id"`
	DurationID    int64  `json:"grant_duration_id"`
}

type updateGrantRequest struct {
	Name       *string `json:"name"`
	DurationID *int64  `json:"grant_duration_id"`
}

func (a *API) handleGrants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createGrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		serviceReq := dds.CreateGrantRequest{
			Name:          req.Name,
			ApplicationID: req.ApplicationID,
			DurationID:    req.DurationID,
		}

		var (
			grant *dds.ApplicationGrant
			err   error
		)
		if token := strings.TrimSpace(r.Header.Get(grantTokenHeader)); token != "" {
			grant, err = a.grants.CreateWithToken(r.Context(), a.tokens, token, serviceReq)
		} else {
			grant, err = a.grants.Create(r.Context(), serviceReq)
		}
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "grant.create", map[string]any{
			"grant_id":       grant.ID,
			"application_id": grant.ApplicationID,
			"group_id":       grant.GroupID,
			"name":           grant.Name,
		})
		writeJSON(w, http.StatusCreated, grant)
	case http.MethodGet:
		applicationID, err := parseID(r.URL.Query().Get("application"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "application query parameter is required")
			return
		}
		grants, err := a.grants.ListByApplication(r.Context(), applicationID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, grants)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleGrantScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/grants/"), "/")
	grantID, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req updateGrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		grant, err := a.grants.Update(r.Context(), grantID, dds.UpdateGrantRequest{
			Name:       req.Name,
			DurationID: req.DurationID,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, grant)
	case http.MethodDelete:
		if err := a.grants.Delete(r.Context(), grantID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "grant.delete", map[string]any{"grant_id": grantID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

type createActionRequest struct {
	GrantID     int64    `json:"application_grant_id"`
	IntervalID  int64    `json:"action_interval_id"`
	CanPublish  bool     `json:"can_publish"`
	TopicIDs    []int64  `json:"topic_ids"`
	TopicSetIDs []int64  `json:"topic_set_ids"`
	Partitions  []string `json:"partitions"`
}

type updateActionRequest struct {
	IntervalID  *int64   `json:"action_interval_id"`
	CanPublish  *bool    `json:"can_publish"`
	TopicIDs    []int64  `json:"topic_ids"`
	TopicSetIDs []int64  `json:"topic_set_ids"`
	Partitions  []string `json:"partitions"`
}

func (a *API) handleActions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createActionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		action, err := a.actions.Create(r.Context(), dds.CreateActionRequest{
			GrantID:     req.GrantID,
			IntervalID:  req.IntervalID,
			CanPublish:  req.CanPublish,
			TopicIDs:    req.TopicIDs,
			TopicSetIDs: req.TopicSetIDs,
			Partitions:  req.Partitions,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "action.create", map[string]any{
			"action_id":   action.ID,
			"grant_id":    action.GrantID,
			"can_publish": action.CanPublish,
		})
		writeJSON(w, http.StatusCreated, action)
	case http.MethodGet:
		grantID, err := parseID(r.URL.Query().Get("grant"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "grant query parameter is required")
			return
		}
		actions, err := a.actions.ListByGrant(r.Context(), grantID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, actions)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleActionScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/actions/"), "/")
	actionID, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req updateActionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		action, err := a.actions.Update(r.Context(), actionID, dds.UpdateActionRequest{
			IntervalID:  req.IntervalID,
			CanPublish:  req.CanPublish,
			TopicIDs:    req.TopicIDs,
			TopicSetIDs: req.TopicSetIDs,
			Partitions:  req.Partitions,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, action)
	case http.MethodDelete:
		if err := a.actions.Delete(r.Context(), actionID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

type topicAccessRequest struct {
	ApplicationID   int64    `json:"application_id"`
	Access          string   `json:"access"`
	ReadPartitions  []string `json:"read_partitions"`
	WritePartitions []string `json:"write_partitions"`
}

// handleTopicAccess creates a direct application-to-topic permission, either
// through an admin session or by redeeming a bind token.
func (a *API) handleTopicAccess(w http.ResponseWriter, r *http.Request, topicID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req topicAccessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	serviceReq := dds.AddAccessRequest{
		TopicID:         topicID,
		Access:          dds.AccessType(req.Access),
		ReadPartitions:  req.ReadPartitions,
		WritePartitions: req.WritePartitions,
	}

	var (
		perm *dds.ApplicationPermission
		err  error
	)
	if token := strings.TrimSpace(r.Header.Get(grantTokenHeader)); token != "" {
		perm, err = a.permissions.AddAccessWithToken(r.Context(), a.tokens, token, serviceReq)
	} else {
		perm, err = a.permissions.AddAccess(r.Context(), req.ApplicationID, serviceReq)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "topic.access.create", map[string]any{
		"permission_id":  perm.ID,
		"topic_id":       perm.TopicID,
		"application_id": perm.ApplicationID,
		"access":         string(perm.Access),
	})
	writeJSON(w, http.StatusCreated, perm)
}
