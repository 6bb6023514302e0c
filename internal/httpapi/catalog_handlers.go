package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

// Catalog entities (groups, topics, topic sets, durations, intervals,
// membership) are simple enough that handlers gate and hit the store
// directly; grants, actions and applications go through services.

type createGroupRequest struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

func (a *API) handleGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if err := a.gate.RequireAdmin(r.Context()); err != nil {
			handleServiceError(w, r, err)
			return
		}
		var req createGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, r, http.StatusBadRequest, "group name is required")
			return
		}
		now := time.Now().UTC()
		group := &dds.Group{Name: name, Public: req.Public, CreatedAt: now, UpdatedAt: now}
		if err := a.store.Groups().Create(r.Context(), group); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "group.create", map[string]any{"group_id": group.ID, "name": group.Name})
		writeJSON(w, http.StatusCreated, group)
	case http.MethodGet:
		visible, admin, err := a.gate.VisibleGroups(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		all, err := a.store.Groups().List(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if admin {
			writeJSON(w, http.StatusOK, all)
			return
		}
		member := make(map[int64]struct{}, len(visible))
		for _, id := range visible {
			member[id] = struct{}{}
		}
		groups := make([]*dds.Group, 0, len(visible))
		for _, g := range all {
			if _, ok := member[g.ID]; ok {
				groups = append(groups, g)
			} else if g.Public {
				groups = append(groups, g)
			}
		}
		writeJSON(w, http.StatusOK, groups)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

type upsertMemberRequest struct {
	UserID           int64  `json:"user_id"`
	Email            string `json:"email"`
	TopicAdmin       bool   `json:"topic_admin"`
	ApplicationAdmin bool   `json:"application_admin"`
}

func (a *API) handleGroupScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/groups/"), "/")
	parts := strings.Split(path, "/")
	groupID, err := parseID(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 1:
		a.handleGroupResource(w, r, groupID)
	case len(parts) == 2 && parts[1] == "members":
		a.handleGroupMembers(w, r, groupID)
	case len(parts) == 3 && parts[1] == "members":
		userID, err := parseID(parts[2])
		if err != nil {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleGroupMemberResource(w, r, groupID, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleGroupResource(w http.ResponseWriter, r *http.Request, groupID int64) {
	switch r.Method {
	case http.MethodGet:
		group, err := a.store.Groups().Find(r.Context(), groupID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !group.Public {
			if err := a.gate.RequireMember(r.Context(), groupID); err != nil {
				handleServiceError(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, group)
	case http.MethodPut:
		if err := a.gate.RequireAdmin(r.Context()); err != nil {
			handleServiceError(w, r, err)
			return
		}
		group, err := a.store.Groups().Find(r.Context(), groupID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		var req createGroupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			group.Name = name
		}
		group.Public = req.Public
		group.UpdatedAt = time.Now().UTC()
		if err := a.store.Groups().Update(r.Context(), group); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, group)
	case http.MethodDelete:
		if err := a.gate.RequireAdmin(r.Context()); err != nil {
			handleServiceError(w, r, err)
			return
		}
		if err := a.store.Groups().Delete(r.Context(), groupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "group.delete", map[string]any{"group_id": groupID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleGroupMembers(w http.ResponseWriter, r *http.Request, groupID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.gate.RequireAdmin(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req upsertMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	member := &dds.GroupMember{
		GroupID:          groupID,
		UserID:           req.UserID,
		Email:            strings.TrimSpace(req.Email),
		TopicAdmin:       req.TopicAdmin,
		ApplicationAdmin: req.ApplicationAdmin,
	}
	if err := a.store.Members().Upsert(r.Context(), member); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "group.member.upsert", map[string]any{
		"group_id":          groupID,
		"member_user_id":    req.UserID,
		"topic_admin":       req.TopicAdmin,
		"application_admin": req.ApplicationAdmin,
	})
	writeJSON(w, http.StatusCreated, member)
}

func (a *API) handleGroupMemberResource(w http.ResponseWriter, r *http.Request, groupID, userID int64) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if err := a.gate.RequireAdmin(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := a.store.Members().Remove(r.Context(), groupID, userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "group.member.remove", map[string]any{
		"group_id":       groupID,
		"member_user_id": userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

type createTopicRequest struct {
	GroupID     int64  `json:"group_id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type updateTopicRequest struct {
	Description *string `json:"description"`
	Public      *bool   `json:"public"`
}

func (a *API) handleTopics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createTopicRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.gate.RequireTopicAdmin(r.Context(), req.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		kind := dds.TopicKind(req.Kind)
		if kind != dds.KindBestEffort && kind != dds.KindReliable {
			writeError(w, r, http.StatusBadRequest, "kind must be B or C")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, r, http.StatusBadRequest, "topic name is required")
			return
		}
		if _, err := a.store.Groups().Find(r.Context(), req.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		now := time.Now().UTC()
		topic := &dds.Topic{
			GroupID:     req.GroupID,
			Kind:        kind,
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			Public:      req.Public,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := a.store.Topics().Create(r.Context(), topic); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "topic.create", map[string]any{
			"topic_id": topic.ID,
			"group_id": topic.GroupID,
			"name":     dds.CanonicalName(topic.Kind, topic.GroupID, topic.Name),
		})
		writeJSON(w, http.StatusCreated, topic)
	case http.MethodGet:
		groupID, err := parseID(r.URL.Query().Get("group"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "group query parameter is required")
			return
		}
		if err := a.gate.RequireMember(r.Context(), groupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		topics, err := a.store.Topics().ListByGroup(r.Context(), groupID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, topics)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTopicScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/topics/"), "/")
	parts := strings.Split(path, "/")
	topicID, err := parseID(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if len(parts) == 2 && parts[1] == "access" {
		a.handleTopicAccess(w, r, topicID)
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	topic, err := a.store.Topics().Find(r.Context(), topicID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !topic.Public {
			if err := a.gate.RequireMember(r.Context(), topic.GroupID); err != nil {
				handleServiceError(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, topic)
	case http.MethodPut:
		if err := a.gate.RequireTopicAdmin(r.Context(), topic.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		var req updateTopicRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.Description != nil {
			topic.Description = strings.TrimSpace(*req.Description)
		}
		if req.Public != nil {
			topic.Public = *req.Public
		}
		topic.UpdatedAt = time.Now().UTC()
		if err := a.store.Topics().Update(r.Context(), topic); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, topic)
	case http.MethodDelete:
		if err := a.gate.RequireTopicAdmin(r.Context(), topic.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		if err := a.store.Topics().Delete(r.Context(), topic.ID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "topic.delete", map[string]any{"topic_id": topic.ID})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

type createTopicSetRequest struct {
	GroupID int64  `json:"group_id"`
	Name    string `json:"name"`
}

type topicSetMemberRequest struct {
	TopicID int64 `json:"topic_id"`
}

func (a *API) handleTopicSets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createTopicSetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.gate.RequireTopicAdmin(r.Context(), req.GroupID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "topic set name is required")
		return
	}
	if _, err := a.store.Groups().Find(r.Context(), req.GroupID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	now := time.Now().UTC()
	set := &dds.TopicSet{GroupID: req.GroupID, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := a.store.TopicSets().Create(r.Context(), set); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (a *API) handleTopicSetScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/topic_sets/"), "/")
	parts := strings.Split(path, "/")
	setID, err := parseID(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	set, err := a.store.TopicSets().Find(r.Context(), setID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := a.gate.RequireTopicAdmin(r.Context(), set.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		if err := a.store.TopicSets().Delete(r.Context(), set.ID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 1 && r.Method == http.MethodGet:
		if err := a.gate.RequireMember(r.Context(), set.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		topicIDs, err := a.store.TopicSets().TopicIDs(r.Context(), set.ID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"topic_set": set,
			"topic_ids": topicIDs,
		})
	case len(parts) == 2 && parts[1] == "topics":
		a.handleTopicSetTopics(w, r, set)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// handleTopicSetTopics adds or removes one topic from a set. The topic must
// belong to the set's group.
func (a *API) handleTopicSetTopics(w http.ResponseWriter, r *http.Request, set *dds.TopicSet) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		return
	}
	if err := a.gate.RequireTopicAdmin(r.Context(), set.GroupID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req topicSetMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	topic, err := a.store.Topics().Find(r.Context(), req.TopicID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if topic.GroupID != set.GroupID {
		writeError(w, r, http.StatusBadRequest, "topic and topic set belong to different groups")
		return
	}
	if r.Method == http.MethodPost {
		err = a.store.TopicSets().AddTopic(r.Context(), set.ID, topic.ID)
	} else {
		err = a.store.TopicSets().RemoveTopic(r.Context(), set.ID, topic.ID)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createDurationRequest struct {
	GroupID        int64  `json:"group_id"`
	Name           string `json:"name"`
	DurationMillis int64  `json:"duration_in_milliseconds"`
	Metadata       string `json:"duration_metadata"`
}

func (a *API) handleDurations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createDurationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.gate.RequireApplicationAdmin(r.Context(), req.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, r, http.StatusBadRequest, "duration name is required")
			return
		}
		if req.DurationMillis <= 0 {
			writeError(w, r, http.StatusBadRequest, "duration must be positive")
			return
		}
		if _, err := a.store.Groups().Find(r.Context(), req.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		now := time.Now().UTC()
		duration := &dds.GrantDuration{
			GroupID:        req.GroupID,
			Name:           name,
			DurationMillis: req.DurationMillis,
			Metadata:       strings.TrimSpace(req.Metadata),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := a.store.Durations().Create(r.Context(), duration); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, duration)
	case http.MethodGet:
		groupID, err := parseID(r.URL.Query().Get("group"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "group query parameter is required")
			return
		}
		if err := a.gate.RequireMember(r.Context(), groupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		durations, err := a.store.Durations().ListByGroup(r.Context(), groupID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, durations)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDurationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/durations/"), "/")
	durationID, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	// The grant service owns the referential guard.
	if err := a.grants.DeleteDuration(r.Context(), durationID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "duration.delete", map[string]any{"duration_id": durationID})
	w.WriteHeader(http.StatusNoContent)
}

type createIntervalRequest struct {
	GroupID int64     `json:"group_id"`
	Name    string    `json:"name"`
	Start   time.Time `json:"start_date"`
	End     time.Time `json:"end_date"`
}

func (a *API) handleIntervals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createIntervalRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.gate.RequireTopicAdmin(r.Context(), req.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, r, http.StatusBadRequest, "interval name is required")
			return
		}
		if !req.End.After(req.Start) {
			writeError(w, r, http.StatusBadRequest, "interval end must be after start")
			return
		}
		if _, err := a.store.Groups().Find(r.Context(), req.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		now := time.Now().UTC()
		interval := &dds.ActionInterval{
			GroupID:   req.GroupID,
			Name:      name,
			Start:     req.Start.UTC(),
			End:       req.End.UTC(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := a.store.Intervals().Create(r.Context(), interval); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, interval)
	case http.MethodGet:
		groupID, err := parseID(r.URL.Query().Get("group"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "group query parameter is required")
			return
		}
		if err := a.gate.RequireMember(r.Context(), groupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		intervals, err := a.store.Intervals().ListByGroup(r.Context(), groupID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, intervals)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleIntervalScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/intervals/"), "/")
	intervalID, err := parseID(path)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	interval, err := a.store.Intervals().Find(r.Context(), intervalID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	switch r.Method {
	case http.MethodPut:
		if err := a.gate.RequireTopicAdmin(r.Context(), interval.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		var req createIntervalRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			interval.Name = name
		}
		if !req.Start.IsZero() {
			interval.Start = req.Start.UTC()
		}
		if !req.End.IsZero() {
			interval.End = req.End.UTC()
		}
		if !interval.End.After(interval.Start) {
			writeError(w, r, http.StatusBadRequest, "interval end must be after start")
			return
		}
		interval.UpdatedAt = time.Now().UTC()
		if err := a.store.Intervals().Update(r.Context(), interval); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, interval)
	case http.MethodDelete:
		if err := a.gate.RequireTopicAdmin(r.Context(), interval.GroupID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		if err := a.store.Intervals().Delete(r.Context(), interval.ID); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}
