package goquery

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/urlkeep"
	"gopkg.in/yaml.v3"
)

var _ urlkeep.Extractor = (*RuleExtractor)(nil)

// Selector picks a value out of a page: the text of the first element
// matching CSS, or the named attribute of it when Attr is set.
type Selector struct {
	CSS  string `yaml:"selector"`
	Attr string `yaml:"attr,omitempty"`
}

// Rule describes a site extractor declaratively.
//
//	rules:
//	  - name: hackernews
//	    hosts: [news.ycombinator.com]
//	    path: ^/item
//	    title: {selector: ".titleline > a"}
//	    fields:
//	      hn_points: {selector: ".score"}
type Rule struct {
	Name        string              `yaml:"name"`
	Hosts       []string            `yaml:"hosts"`
	Path        string              `yaml:"path,omitempty"`
	Title       Selector            `yaml:"title"`
	Description *Selector           `yaml:"description,omitempty"`
	Fields      map[string]Selector `yaml:"fields,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// RuleExtractor is an Extractor built from a Rule.
type RuleExtractor struct {
	rule Rule
	path *regexp.Regexp
}

// NewRuleExtractor validates rule and compiles its path pattern.
func NewRuleExtractor(rule Rule) (*RuleExtractor, error) {
	if rule.Name == "" {
		return nil, urlkeep.Errorf(urlkeep.EINVALID, "extractor rule name required")
	}
	if rule.Name == urlkeep.GenericExtractorName {
		return nil, urlkeep.Errorf(urlkeep.EINVALID, "extractor rule name %q is reserved", rule.Name)
	}
	if len(rule.Hosts) == 0 {
		return nil, urlkeep.Errorf(urlkeep.EINVALID, "extractor rule %q: hosts required", rule.Name)
	}
	if rule.Title.CSS == "" {
		return nil, urlkeep.Errorf(urlkeep.EINVALID, "extractor rule %q: title selector required", rule.Name)
	}
	for name := range rule.Fields {
		if urlkeep.IsReservedField(name) || name == urlkeep.FieldTitle || name == urlkeep.FieldText {
			return nil, urlkeep.Errorf(urlkeep.EINVALID, "extractor rule %q: field %q is reserved", rule.Name, name)
		}
	}

	e := &RuleExtractor{rule: rule}
	e.rule.Hosts = make([]string, len(rule.Hosts))
	for i, h := range rule.Hosts {
		e.rule.Hosts[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if rule.Path != "" {
		re, err := regexp.Compile(rule.Path)
		if err != nil {
			return nil, urlkeep.WrapError(urlkeep.EINVALID, err, "extractor rule %q: invalid path pattern", rule.Name)
		}
		e.path = re
	}
	return e, nil
}

// LoadRules reads a YAML rules document and builds one extractor per rule,
// in file order.
func LoadRules(r io.Reader) ([]*RuleExtractor, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, urlkeep.WrapError(urlkeep.EINVALID, err, "failed to parse extractor rules")
	}

	seen := make(map[string]bool)
	extractors := make([]*RuleExtractor, 0, len(f.Rules))
	for _, rule := range f.Rules {
		if seen[rule.Name] {
			return nil, urlkeep.Errorf(urlkeep.EINVALID, "duplicate extractor rule %q", rule.Name)
		}
		seen[rule.Name] = true

		e, err := NewRuleExtractor(rule)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, e)
	}
	return extractors, nil
}

// Name returns the rule's name.
func (e *RuleExtractor) Name() string {
	return e.rule.Name
}

// Match reports whether the page's host is one of the rule's hosts (or a
// subdomain of one) and its path matches the rule's pattern.
func (e *RuleExtractor) Match(page *urlkeep.Page) bool {
	u, err := url.Parse(page.SelectURL())
	if err != nil {
		return false
	}
	if !e.matchHost(strings.ToLower(u.Hostname())) {
		return false
	}
	return e.path == nil || e.path.MatchString(u.Path)
}

func (e *RuleExtractor) matchHost(host string) bool {
	for _, h := range e.rule.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Extract applies the rule's selectors. A missing title is an extraction
// error; missing description or fields are skipped. Without a description
// selector the page's meta description is used.
func (e *RuleExtractor) Extract(page *urlkeep.Page) (*urlkeep.PartialRecord, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}

	title := e.rule.Title.value(doc)
	if title == "" {
		return nil, urlkeep.Errorf(urlkeep.EEXTRACT, "extractor %q: no title at %q", e.rule.Name, e.rule.Title.CSS)
	}

	var description *string
	if e.rule.Description != nil {
		if v := e.rule.Description.value(doc); v != "" {
			description = &v
		}
	} else {
		description = pageDescription(doc)
	}

	rec := &urlkeep.PartialRecord{
		Title:       stringPtr(title),
		Description: description,
		BodyText:    bodyText(page.URL, description),
	}
	for name, sel := range e.rule.Fields {
		v := sel.value(doc)
		if v == "" {
			continue
		}
		if rec.ExtraFields == nil {
			rec.ExtraFields = make(map[string]string)
		}
		rec.ExtraFields[name] = v
	}
	return rec, nil
}

func (s Selector) value(doc *goquery.Document) string {
	sel := doc.Find(s.CSS).First()
	if s.Attr != "" {
		v, _ := sel.Attr(s.Attr)
		return strings.TrimSpace(v)
	}
	return selectionText(sel)
}
