package scheduler

import (
	"encoding/json"
	"time"

	"capdev_portal/internal/email"

	"github.com/hibiken/asynq"
)

const TaskEmailSend = "email.send"

const TaskEmailSendBatch = "email.send_batch"

const TaskWeeklyDigest = "notification.weekly_digest"

type WeeklyDigestPayload struct {
	// Since is the cutoff for opportunities to include. Zero means one week
	// before the task runs.
	Since time.Time `json:"since,omitzero"`
}

func NewEmailSendTask(req email.SendRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailSend, data), nil
}

func ParseEmailSendPayload(task *asynq.Task) (email.SendRequest, error) {
	var payload email.SendRequest
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return email.SendRequest{}, err
	}
	return payload, nil
}

func NewEmailSendBatchTask(req email.BatchRequest) (*asynq.Task, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailSendBatch, data), nil
}

func ParseEmailSendBatchPayload(task *asynq.Task) (email.BatchRequest, error) {
	var payload email.BatchRequest
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return email.BatchRequest{}, err
	}
	return payload, nil
}

func NewWeeklyDigestTask(payload WeeklyDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWeeklyDigest, data), nil
}

func ParseWeeklyDigestPayload(task *asynq.Task) (WeeklyDigestPayload, error) {
	var payload WeeklyDigestPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WeeklyDigestPayload{}, err
	}
	return payload, nil
}
