package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rocha19/userserver/internal/events"
)

const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	userAggregateType = "user"
)

func newUserEvent(eventType string, id int32, user User, timestamp time.Time) events.Event {
	data := map[string]interface{}{
		"user_id": id,
	}
	if user.Name != "" || user.Email != "" {
		data["name"] = user.Name
		data["email"] = user.Email
	}

	return events.Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		AggregateType: userAggregateType,
		AggregateID:   strconv.FormatInt(int64(id), 10),
		Version:       1,
		Timestamp:     timestamp,
		Data:          data,
	}
}
