package layout

import (
	"encoding/json"
	"os"
)

type debugEntry struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

type debugDocument struct {
	*Document
	Story   []debugEntry `json:"story,omitempty"`
	Drawing []debugEntry `json:"drawing,omitempty"`
}

// WriteDebugJSON 将编译结果输出为 JSON，便于调试。
func WriteDebugJSON(doc *Document, path string) error {
	if doc == nil {
		return nil
	}
	data, err := json.MarshalIndent(debugDocument{
		Document: doc,
		Story:    debugStory(doc.Story),
		Drawing:  debugDrawing(doc.Drawing),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func debugStory(story []Flowable) []debugEntry {
	out := make([]debugEntry, 0, len(story))
	for _, f := range story {
		out = append(out, debugEntry{Kind: f.Kind(), Value: f})
	}
	return out
}

func debugDrawing(cmds []DrawCommand) []debugEntry {
	out := make([]debugEntry, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, debugEntry{Kind: c.Op(), Value: c})
	}
	return out
}
