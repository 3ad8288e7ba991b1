package stage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// wireStage is the JSON shape of a stage metadata document. Pointer fields
// distinguish a missing key from a zero value.
type wireStage struct {
	Stage       *string     `json:"stage"`
	Version     *wireString `json:"version"`
	UpstreamURL *string     `json:"upstream_url"`

	Tools          *[]wireTool `json:"tools,omitempty"`
	AllowedDomains []string    `json:"allowed_domains,omitempty"`

	HiddenTools    []string         `json:"hidden_tools,omitempty"`
	RoutedTools    []wireRoute      `json:"routed_tools,omitempty"`
	SyntheticTools []wireSynthetic  `json:"synthetic_tools,omitempty"`
	UIBindings     *[]wireUIBinding `json:"ui_bindings,omitempty"`
}

type wireTool struct {
	Name         *string        `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	Code         *string        `json:"code"`
	NeedsNetwork bool           `json:"needs_network"`
}

type wireRoute struct {
	ExposedName     *string        `json:"exposed_name"`
	UpstreamName    *string        `json:"upstream_name"`
	ExposedSchema   map[string]any `json:"exposed_schema,omitempty"`
	Description     *string        `json:"description,omitempty"`
	InputTransform  *string        `json:"input_transform"`
	OutputTransform *string        `json:"output_transform"`
}

type wireSynthetic struct {
	Name          *string        `json:"name"`
	Description   string         `json:"description"`
	InputSchema   map[string]any `json:"input_schema,omitempty"`
	Orchestration *string        `json:"orchestration_code"`
	References    []string       `json:"referenced_tools,omitempty"`
}

type wireUIBinding struct {
	ToolName   *string `json:"tool_name"`
	ResourceID *string `json:"resource_id"`
	Markup     string  `json:"markup"`
}

// wireString accepts a JSON string or number.
type wireString string

func (w *wireString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = wireString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("version must be a string or number")
	}
	*w = wireString(n.String())
	return nil
}

// Decode parses a stage metadata document.
// Returns a *ProtocolError if the document is not well-formed JSON or lacks
// a field required by its declared stage kind.
func Decode(data []byte) (*Stage, error) {
	var w wireStage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &ProtocolError{Reason: "malformed metadata document", Err: err}
	}
	return w.toStage()
}

func (w *wireStage) toStage() (*Stage, error) {
	if w.Stage == nil {
		return nil, missing("stage")
	}
	kind := Kind(*w.Stage)
	if !kind.Valid() {
		return nil, &ProtocolError{Field: "stage", Reason: "unknown stage kind " + strconv.Quote(*w.Stage)}
	}
	if w.Version == nil {
		return nil, missing("version")
	}

	st := &Stage{Kind: kind, Version: string(*w.Version)}
	if w.UpstreamURL != nil {
		st.Upstream = *w.UpstreamURL
	}

	switch kind {
	case KindRoot:
		root, err := w.toRoot()
		if err != nil {
			return nil, err
		}
		st.Root = root
	case KindTransform:
		tr, err := w.toTransform()
		if err != nil {
			return nil, err
		}
		st.Transform = tr
	case KindPresentation:
		p, err := w.toPresentation()
		if err != nil {
			return nil, err
		}
		st.Presentation = p
	}
	return st, nil
}

func (w *wireStage) toRoot() (*Root, error) {
	if w.Tools == nil {
		return nil, missing("tools")
	}
	root := &Root{
		Tools:          make([]ToolDefinition, 0, len(*w.Tools)),
		AllowedDomains: w.AllowedDomains,
	}
	for i, t := range *w.Tools {
		if t.Name == nil || *t.Name == "" {
			return nil, missing(fmt.Sprintf("tools[%d].name", i))
		}
		if t.Code == nil {
			return nil, missing(fmt.Sprintf("tools[%d].code", i))
		}
		root.Tools = append(root.Tools, ToolDefinition{
			Name:         *t.Name,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			Code:         *t.Code,
			NeedsNetwork: t.NeedsNetwork,
		})
	}
	return root, nil
}

func (w *wireStage) toTransform() (*Transform, error) {
	tr := &Transform{HiddenTools: w.HiddenTools}
	for i, r := range w.RoutedTools {
		if r.ExposedName == nil || *r.ExposedName == "" {
			return nil, missing(fmt.Sprintf("routed_tools[%d].exposed_name", i))
		}
		if r.UpstreamName == nil || *r.UpstreamName == "" {
			return nil, missing(fmt.Sprintf("routed_tools[%d].upstream_name", i))
		}
		tr.RoutedTools = append(tr.RoutedTools, RoutingEntry{
			ExposedName:     *r.ExposedName,
			UpstreamName:    *r.UpstreamName,
			ExposedSchema:   r.ExposedSchema,
			Description:     r.Description,
			InputTransform:  r.InputTransform,
			OutputTransform: r.OutputTransform,
		})
	}
	for i, s := range w.SyntheticTools {
		if s.Name == nil || *s.Name == "" {
			return nil, missing(fmt.Sprintf("synthetic_tools[%d].name", i))
		}
		if s.Orchestration == nil {
			return nil, missing(fmt.Sprintf("synthetic_tools[%d].orchestration_code", i))
		}
		tr.SyntheticTools = append(tr.SyntheticTools, SyntheticTool{
			Name:          *s.Name,
			Description:   s.Description,
			InputSchema:   s.InputSchema,
			Orchestration: *s.Orchestration,
			References:    s.References,
		})
	}
	return tr, nil
}

func (w *wireStage) toPresentation() (*Presentation, error) {
	if w.UIBindings == nil {
		return nil, missing("ui_bindings")
	}
	p := &Presentation{UIBindings: make([]UIBinding, 0, len(*w.UIBindings))}
	for i, b := range *w.UIBindings {
		if b.ToolName == nil || *b.ToolName == "" {
			return nil, missing(fmt.Sprintf("ui_bindings[%d].tool_name", i))
		}
		if b.ResourceID == nil || *b.ResourceID == "" {
			return nil, missing(fmt.Sprintf("ui_bindings[%d].resource_id", i))
		}
		p.UIBindings = append(p.UIBindings, UIBinding{
			ToolName:   *b.ToolName,
			ResourceID: *b.ResourceID,
			Markup:     b.Markup,
		})
	}
	return p, nil
}

// Encode renders a stage as a metadata document. It is the inverse of Decode
// and is what a stage serves from its introspection tool.
func Encode(st *Stage) ([]byte, error) {
	if st == nil || !st.Kind.Valid() {
		return nil, &ProtocolError{Field: "stage", Reason: "unknown stage kind"}
	}
	kind := string(st.Kind)
	version := wireString(st.Version)
	w := wireStage{Stage: &kind, Version: &version}
	if st.Upstream != "" {
		up := st.Upstream
		w.UpstreamURL = &up
	}

	switch st.Kind {
	case KindRoot:
		tools := []wireTool{}
		if st.Root != nil {
			for _, t := range st.Root.Tools {
				tools = append(tools, wireTool{
					Name:         &t.Name,
					Description:  t.Description,
					InputSchema:  t.InputSchema,
					Code:         &t.Code,
					NeedsNetwork: t.NeedsNetwork,
				})
			}
			w.AllowedDomains = st.Root.AllowedDomains
		}
		w.Tools = &tools
	case KindTransform:
		if st.Transform != nil {
			w.HiddenTools = st.Transform.HiddenTools
			for _, r := range st.Transform.RoutedTools {
				w.RoutedTools = append(w.RoutedTools, wireRoute{
					ExposedName:     &r.ExposedName,
					UpstreamName:    &r.UpstreamName,
					ExposedSchema:   r.ExposedSchema,
					Description:     r.Description,
					InputTransform:  r.InputTransform,
					OutputTransform: r.OutputTransform,
				})
			}
			for _, s := range st.Transform.SyntheticTools {
				w.SyntheticTools = append(w.SyntheticTools, wireSynthetic{
					Name:          &s.Name,
					Description:   s.Description,
					InputSchema:   s.InputSchema,
					Orchestration: &s.Orchestration,
					References:    s.References,
				})
			}
		}
	case KindPresentation:
		bindings := []wireUIBinding{}
		if st.Presentation != nil {
			for _, b := range st.Presentation.UIBindings {
				bindings = append(bindings, wireUIBinding{
					ToolName:   &b.ToolName,
					ResourceID: &b.ResourceID,
					Markup:     b.Markup,
				})
			}
		}
		w.UIBindings = &bindings
	}
	return json.Marshal(w)
}

// MarshalJSON implements json.Marshaler for wireString.
func (w wireString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(w))
}
