package forgeview

import (
	"pkt.systems/forgeview/core"
	"pkt.systems/forgeview/schema"
)

type sinkFanout struct {
	sinks []core.EventSink
}

func (f sinkFanout) OnSnapshot(snapshot schema.ProgressSnapshot) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnSnapshot(snapshot)
	}
}

func (f sinkFanout) OnConversation(event schema.ConversationEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnConversation(event)
	}
}

func (f sinkFanout) OnFileTree(event schema.FileTreeEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnFileTree(event)
	}
}
