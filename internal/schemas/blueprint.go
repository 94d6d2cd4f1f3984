package schemas

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Document is a parsed blueprint tree node (spec.md §3.2). The root
// document and every sub-blueprint share this shape.
type Document struct {
	Meta Meta `yaml:"meta" json:"meta"`

	Inputs        []InputDecl    `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Artefacts     []ArtefactDecl `yaml:"artefacts,omitempty" json:"artefacts,omitempty"`
	SubBlueprints []SubBlueprint `yaml:"subBlueprints,omitempty" json:"subBlueprints,omitempty"`
	Producers     []ProducerDecl `yaml:"producers,omitempty" json:"producers,omitempty"`
	Edges         []EdgeDecl     `yaml:"edges,omitempty" json:"edges,omitempty"`
	Collectors    []CollectorDecl `yaml:"collectors,omitempty" json:"collectors,omitempty"`

	// SourcePath is the file the document was loaded from, set by the
	// loader. Empty for documents constructed in memory (tests).
	SourcePath string `yaml:"-" json:"-"`
}

// Meta identifies a blueprint document.
type Meta struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`
	License     string `yaml:"license,omitempty" json:"license,omitempty"`
}

// InputDecl declares a blueprint input.
type InputDecl struct {
	Name         string      `yaml:"name" json:"name"`
	Type         string      `yaml:"type" json:"type"`
	Required     bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Description  string      `yaml:"description,omitempty" json:"description,omitempty"`
	DefaultValue interface{} `yaml:"defaultValue,omitempty" json:"defaultValue,omitempty"`
}

// ArtefactDecl declares a blueprint artefact.
type ArtefactDecl struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	ItemType    string `yaml:"itemType,omitempty" json:"itemType,omitempty"`
	CountInput  string `yaml:"countInput,omitempty" json:"countInput,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// SubBlueprint references a child blueprint document instantiated under a
// namespace segment.
type SubBlueprint struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`

	// Resolved is populated by the loader once the child document has
	// been parsed and recursively resolved.
	Resolved *Document `yaml:"-" json:"-"`
}

// ProducerDecl declares a producer node. ExtraFields preserves arbitrary
// provider-specific keys verbatim (spec.md §9 design note).
type ProducerDecl struct {
	Name         string                 `yaml:"name" json:"name"`
	Provider     string                 `yaml:"provider" json:"provider"`
	Model        string                 `yaml:"model,omitempty" json:"model,omitempty"`
	Settings     map[string]interface{} `yaml:"settings,omitempty" json:"settings,omitempty"`
	SystemPrompt string                 `yaml:"systemPrompt,omitempty" json:"systemPrompt,omitempty"`
	UserPrompt   string                 `yaml:"userPrompt,omitempty" json:"userPrompt,omitempty"`
	JSONSchema   map[string]interface{} `yaml:"jsonSchema,omitempty" json:"jsonSchema,omitempty"`
	TextFormat   string                 `yaml:"textFormat,omitempty" json:"textFormat,omitempty"`
	Variables    map[string]string      `yaml:"variables,omitempty" json:"variables,omitempty"`
	SDKMapping   map[string]string      `yaml:"sdkMapping,omitempty" json:"sdkMapping,omitempty"`
	Outputs      []string               `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Config       map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`

	// ExtraFields holds any top-level key this struct doesn't declare,
	// captured verbatim by UnmarshalYAML/UnmarshalJSON and written back
	// out by MarshalYAML/MarshalJSON (spec.md line 53).
	ExtraFields map[string]interface{} `yaml:"-" json:"-"`
}

// producerDeclAlias mirrors ProducerDecl's declared fields without its
// custom (Un)MarshalYAML/JSON methods, so decoding/encoding through it
// doesn't recurse.
type producerDeclAlias struct {
	Name         string                 `yaml:"name" json:"name"`
	Provider     string                 `yaml:"provider" json:"provider"`
	Model        string                 `yaml:"model,omitempty" json:"model,omitempty"`
	Settings     map[string]interface{} `yaml:"settings,omitempty" json:"settings,omitempty"`
	SystemPrompt string                 `yaml:"systemPrompt,omitempty" json:"systemPrompt,omitempty"`
	UserPrompt   string                 `yaml:"userPrompt,omitempty" json:"userPrompt,omitempty"`
	JSONSchema   map[string]interface{} `yaml:"jsonSchema,omitempty" json:"jsonSchema,omitempty"`
	TextFormat   string                 `yaml:"textFormat,omitempty" json:"textFormat,omitempty"`
	Variables    map[string]string      `yaml:"variables,omitempty" json:"variables,omitempty"`
	SDKMapping   map[string]string      `yaml:"sdkMapping,omitempty" json:"sdkMapping,omitempty"`
	Outputs      []string               `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Config       map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// declaredFields copies every field this struct knows about (everything
// but ExtraFields) into the recursion-free alias type.
func (p ProducerDecl) declaredFields() producerDeclAlias {
	return producerDeclAlias{
		Name:         p.Name,
		Provider:     p.Provider,
		Model:        p.Model,
		Settings:     p.Settings,
		SystemPrompt: p.SystemPrompt,
		UserPrompt:   p.UserPrompt,
		JSONSchema:   p.JSONSchema,
		TextFormat:   p.TextFormat,
		Variables:    p.Variables,
		SDKMapping:   p.SDKMapping,
		Outputs:      p.Outputs,
		Config:       p.Config,
	}
}

// setDeclaredFields copies alias's fields onto p, leaving ExtraFields
// untouched for the caller to set afterward.
func (p *ProducerDecl) setDeclaredFields(alias producerDeclAlias) {
	p.Name = alias.Name
	p.Provider = alias.Provider
	p.Model = alias.Model
	p.Settings = alias.Settings
	p.SystemPrompt = alias.SystemPrompt
	p.UserPrompt = alias.UserPrompt
	p.JSONSchema = alias.JSONSchema
	p.TextFormat = alias.TextFormat
	p.Variables = alias.Variables
	p.SDKMapping = alias.SDKMapping
	p.Outputs = alias.Outputs
	p.Config = alias.Config
}

var producerDeclKnownKeys = map[string]bool{
	"name": true, "provider": true, "model": true, "settings": true,
	"systemPrompt": true, "userPrompt": true, "jsonSchema": true,
	"textFormat": true, "variables": true, "sdkMapping": true,
	"outputs": true, "config": true,
}

// UnmarshalYAML decodes the declared fields normally, then captures any
// remaining top-level key verbatim into ExtraFields, so a producer's
// provider-specific settings survive a parse/re-emit round trip even
// though this struct doesn't know their names (spec.md line 53).
func (p *ProducerDecl) UnmarshalYAML(value *yaml.Node) error {
	var alias producerDeclAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	var raw map[string]interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for key := range producerDeclKnownKeys {
		delete(raw, key)
	}

	p.setDeclaredFields(alias)
	if len(raw) > 0 {
		p.ExtraFields = raw
	} else {
		p.ExtraFields = nil
	}
	return nil
}

// MarshalYAML re-emits the declared fields plus whatever ExtraFields
// carries, so a loaded-then-saved document keeps unknown producer keys.
func (p ProducerDecl) MarshalYAML() (interface{}, error) {
	encoded, err := yaml.Marshal(p.declaredFields())
	if err != nil {
		return nil, err
	}
	var merged map[string]interface{}
	if err := yaml.Unmarshal(encoded, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.ExtraFields {
		merged[k] = v
	}
	return merged, nil
}

// UnmarshalJSON mirrors UnmarshalYAML's overflow capture for JSON-encoded
// producers (e.g. plans or APIs that round-trip a blueprint as JSON).
func (p *ProducerDecl) UnmarshalJSON(data []byte) error {
	var alias producerDeclAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range producerDeclKnownKeys {
		delete(raw, key)
	}

	p.setDeclaredFields(alias)
	if len(raw) > 0 {
		p.ExtraFields = raw
	} else {
		p.ExtraFields = nil
	}
	return nil
}

// MarshalJSON mirrors MarshalYAML's overflow round-trip for JSON.
func (p ProducerDecl) MarshalJSON() ([]byte, error) {
	encoded, err := json.Marshal(p.declaredFields())
	if err != nil {
		return nil, err
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(encoded, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.ExtraFields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// EdgeDecl declares an edge between two node references. Endpoints may
// carry dimension brackets, e.g. "ImagePromptProducer[segment]".
type EdgeDecl struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
	Note string `yaml:"note,omitempty" json:"note,omitempty"`
}

// CollectorDecl folds a dimensioned producer output back into a
// lower-dimensional input.
type CollectorDecl struct {
	Name    string `yaml:"name" json:"name"`
	From    string `yaml:"from" json:"from"`
	Into    string `yaml:"into" json:"into"`
	GroupBy string `yaml:"groupBy,omitempty" json:"groupBy,omitempty"`
	OrderBy string `yaml:"orderBy,omitempty" json:"orderBy,omitempty"`
}
