// Package curriculum holds the tutor's static teaching material: the topic
// table, the named prompt templates and the tutor system prompt. It serves
// them to MCP clients as resources and prompts.
package curriculum

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"

	"github.com/ArianneAlonso/tutor-math-mcp/mcp"
)

// URI scheme for topic resources.
const (
	IndexURI    = "matematicas://temas"
	topicPrefix = IndexURI + "/"
)

//go:embed topics.yaml prompts.yaml
var embedded embed.FS

// Topic is one area of the syllabus.
type Topic struct {
	ID          string   `yaml:"id" validate:"required"`
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description"`
	Contents    []string `yaml:"contents" validate:"required,min=1,dive,required"`
}

// URI is the resource URI of the topic, e.g. matematicas://temas/algebra-basica.
func (t Topic) URI() string {
	return topicPrefix + strcase.ToKebab(t.ID)
}

// PromptArgument describes one template argument.
type PromptArgument struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// PromptTemplate is a named prompt rendered with text/template and the
// sprig function set. Arguments are available as .<name>.
type PromptTemplate struct {
	Name        string           `yaml:"name" validate:"required"`
	Description string           `yaml:"description"`
	Arguments   []PromptArgument `yaml:"arguments" validate:"dive"`
	Template    string           `yaml:"template" validate:"required"`

	tmpl *template.Template
}

type topicsFile struct {
	Topics []Topic `yaml:"topics" validate:"required,min=1,dive"`
}

type promptsFile struct {
	System  string           `yaml:"system" validate:"required"`
	Prompts []PromptTemplate `yaml:"prompts" validate:"dive"`
}

// ToolSummary describes a tool in the system prompt.
type ToolSummary struct {
	Name        string
	Params      []string
	Description string
}

// Curriculum is the loaded teaching material. It is immutable after Load
// and safe for concurrent use.
type Curriculum struct {
	topics  []Topic
	prompts []PromptTemplate
	system  *template.Template
}

var (
	_ mcp.ResourceProvider = (*Curriculum)(nil)
	_ mcp.PromptProvider   = (*Curriculum)(nil)
)

// Load reads topics.yaml and prompts.yaml from fsys.
func Load(fsys fs.FS) (*Curriculum, error) {
	var topics topicsFile
	if err := decodeFile(fsys, "topics.yaml", &topics); err != nil {
		return nil, err
	}
	var prompts promptsFile
	if err := decodeFile(fsys, "prompts.yaml", &prompts); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, t := range topics.Topics {
		if seen[t.URI()] {
			return nil, errors.Newf("topics.yaml: duplicate topic %q", t.ID)
		}
		seen[t.URI()] = true
	}

	c := &Curriculum{topics: topics.Topics}

	var err error
	c.system, err = newTemplate("system").Parse(prompts.System)
	if err != nil {
		return nil, errors.Wrap(err, "prompts.yaml: system prompt")
	}

	names := make(map[string]bool)
	for _, p := range prompts.Prompts {
		if names[p.Name] {
			return nil, errors.Newf("prompts.yaml: duplicate prompt %q", p.Name)
		}
		names[p.Name] = true
		p.tmpl, err = newTemplate(p.Name).Parse(p.Template)
		if err != nil {
			return nil, errors.Wrapf(err, "prompts.yaml: prompt %q", p.Name)
		}
		c.prompts = append(c.prompts, p)
	}
	return c, nil
}

var loadDefault = sync.OnceValues(func() (*Curriculum, error) {
	return Load(embedded)
})

// Default returns the curriculum compiled into the binary.
func Default() *Curriculum {
	c, err := loadDefault()
	if err != nil {
		panic(err)
	}
	return c
}

func decodeFile(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return errors.Wrapf(err, "read %s", name)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", name)
	}
	if err := validator.New().Struct(v); err != nil {
		return errors.Wrapf(err, "validate %s", name)
	}
	return nil
}

func newTemplate(name string) *template.Template {
	return template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero")
}

// Topics returns the syllabus in display order.
func (c *Curriculum) Topics() []Topic {
	return append([]Topic(nil), c.topics...)
}

// Topic looks a topic up by id, kebab-case id or display name.
func (c *Curriculum) Topic(key string) (Topic, bool) {
	for _, t := range c.topics {
		if t.ID == key || strcase.ToKebab(t.ID) == key || strings.EqualFold(t.Name, key) {
			return t, true
		}
	}
	return Topic{}, false
}

// Resources lists the topic index followed by one resource per topic.
func (c *Curriculum) Resources() []mcp.Resource {
	resources := []mcp.Resource{{
		URI:         IndexURI,
		Name:        "Temas de matemáticas",
		Description: "Todos los temas de secundaria con sus contenidos",
		MIMEType:    "application/json",
	}}
	for _, t := range c.topics {
		resources = append(resources, mcp.Resource{
			URI:         t.URI(),
			Name:        t.Name,
			Description: t.Description,
			MIMEType:    "text/markdown",
		})
	}
	return resources
}

// ReadResource returns the topic index as JSON or a single topic as
// markdown.
func (c *Curriculum) ReadResource(_ context.Context, uri string) (mcp.ResourceContents, error) {
	if uri == IndexURI {
		index := make(map[string][]string, len(c.topics))
		for _, t := range c.topics {
			index[t.Name] = t.Contents
		}
		data, err := json.MarshalIndent(index, "", "  ")
		if err != nil {
			return mcp.ResourceContents{}, errors.Wrap(err, "marshal topic index")
		}
		return mcp.ResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)}, nil
	}

	for _, t := range c.topics {
		if t.URI() == uri {
			return mcp.ResourceContents{URI: uri, MIMEType: "text/markdown", Text: topicMarkdown(t)}, nil
		}
	}
	return mcp.ResourceContents{}, errors.Mark(errors.Newf("recurso no encontrado: %s", uri), mcp.ErrNotFound)
}

func topicMarkdown(t Topic) string {
	var b strings.Builder
	b.WriteString("# " + t.Name + "\n\n")
	if t.Description != "" {
		b.WriteString(t.Description + "\n\n")
	}
	for _, content := range t.Contents {
		b.WriteString("- " + content + "\n")
	}
	return b.String()
}

// Prompts lists the prompt templates.
func (c *Curriculum) Prompts() []mcp.Prompt {
	prompts := make([]mcp.Prompt, 0, len(c.prompts))
	for _, p := range c.prompts {
		prompt := mcp.Prompt{Name: p.Name, Description: p.Description}
		for _, a := range p.Arguments {
			prompt.Arguments = append(prompt.Arguments, mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		prompts = append(prompts, prompt)
	}
	return prompts
}

// GetPrompt renders the named prompt as a single user message.
func (c *Curriculum) GetPrompt(_ context.Context, name string, args map[string]string) (mcp.GetPromptResult, error) {
	var tmpl *PromptTemplate
	for i := range c.prompts {
		if c.prompts[i].Name == name {
			tmpl = &c.prompts[i]
			break
		}
	}
	if tmpl == nil {
		return mcp.GetPromptResult{}, errors.Mark(errors.Newf("prompt no encontrado: %s", name), mcp.ErrNotFound)
	}

	for _, a := range tmpl.Arguments {
		if a.Required && strings.TrimSpace(args[a.Name]) == "" {
			return mcp.GetPromptResult{}, errors.Mark(
				errors.Newf("falta el argumento requerido '%s'", a.Name), mcp.ErrInvalidArguments)
		}
	}
	if args == nil {
		args = map[string]string{}
	}

	var buf bytes.Buffer
	if err := tmpl.tmpl.Execute(&buf, args); err != nil {
		return mcp.GetPromptResult{}, errors.Wrapf(err, "render prompt %s", name)
	}
	return mcp.GetPromptResult{
		Description: tmpl.Description,
		Messages: []mcp.PromptMessage{{
			Role:    "user",
			Content: mcp.TextContent(strings.TrimSpace(buf.String())),
		}},
	}, nil
}

// SystemPrompt renders the tutor system prompt for the given tools.
func (c *Curriculum) SystemPrompt(tools []ToolSummary) (string, error) {
	var buf bytes.Buffer
	err := c.system.Execute(&buf, struct {
		Tools  []ToolSummary
		Topics []Topic
	}{tools, c.topics})
	if err != nil {
		return "", errors.Wrap(err, "render system prompt")
	}
	return strings.TrimSpace(buf.String()), nil
}
