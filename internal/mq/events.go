package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tasktrack/apiserver/types"
)

const jsonContentType = "application/json"

// TaskEventPublisher serializes task events as JSON onto a single channel.
type TaskEventPublisher struct {
	mq      *MQ
	channel string
}

func NewTaskEventPublisher(mq *MQ, channel string) *TaskEventPublisher {
	return &TaskEventPublisher{mq: mq, channel: channel}
}

func (p *TaskEventPublisher) PublishTaskEvent(ctx context.Context, event types.TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode task event: %w", err)
	}

	attrs := map[string]string{
		AttrContentType: jsonContentType,
		AttrEventType:   event.Type,
		AttrOwnerID:     strconv.FormatInt(event.OwnerID, 10),
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// SubscribeTaskEvents decodes every message on channel as a task event.
// Messages that fail to decode are reported to onInvalid and acked.
func SubscribeTaskEvents(ctx context.Context, m *MQ, channel string, handler func(context.Context, types.TaskEvent) error, onInvalid func(Message, error)) error {
	return m.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		var event types.TaskEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			if onInvalid != nil {
				onInvalid(msg, err)
			}
			return nil
		}
		return handler(ctx, event)
	})
}
