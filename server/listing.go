package server

import (
	"net/url"
	"strings"

	"github.com/jonwraymond/datahub/query"
)

// ModuleSummary is one entry of the root listing.
type ModuleSummary struct {
	Path string `json:"path"`
	Doc  string `json:"doc,omitempty"`
	URL  string `json:"url"`
}

// ModuleListing is the body of GET /.
type ModuleListing struct {
	Modules []ModuleSummary `json:"modules"`
}

// ParamDoc describes one query parameter.
type ParamDoc struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
}

// QueryDoc documents one query with runnable example URLs.
type QueryDoc struct {
	Name     string     `json:"name"`
	Doc      string     `json:"doc,omitempty"`
	Params   []ParamDoc `json:"params"`
	Examples []string   `json:"examples,omitempty"`
}

// ModuleDoc is the body of GET /<module> without a qid.
type ModuleDoc struct {
	Path    string     `json:"path"`
	Doc     string     `json:"doc,omitempty"`
	Cached  bool       `json:"cached"`
	Queries []QueryDoc `json:"queries"`
}

func moduleURL(path string) string {
	return "/" + path
}

func documentModule(mod query.Module, qs []query.Query) ModuleDoc {
	doc := ModuleDoc{
		Path:    mod.Path,
		Doc:     mod.Doc,
		Cached:  mod.CacheRoot != "",
		Queries: make([]QueryDoc, 0, len(qs)),
	}
	for _, q := range qs {
		doc.Queries = append(doc.Queries, documentQuery(mod.Path, q.Spec))
	}
	return doc
}

func documentQuery(module string, spec query.Spec) QueryDoc {
	qd := QueryDoc{
		Name:   spec.Name,
		Doc:    spec.Doc,
		Params: make([]ParamDoc, 0, len(spec.Params)),
	}
	for _, p := range spec.Params {
		kind := "string"
		if p.Kind == query.KindDate {
			kind = "date"
		}
		qd.Params = append(qd.Params, ParamDoc{
			Name:     p.Name,
			Kind:     kind,
			Required: !p.HasDefault,
			Default:  p.Default,
		})
	}
	for _, ex := range spec.Examples {
		qd.Examples = append(qd.Examples, exampleURL(module, spec.Name, ex))
	}
	return qd
}

// exampleURL turns "&rows=5&cols=1" into "/<module>?qid=<name>&rows=5&cols=1".
func exampleURL(module, name, example string) string {
	u := moduleURL(module) + "?" + query.ParamQueryID + "=" + url.QueryEscape(name)
	if example = strings.TrimLeft(example, "?&"); example != "" {
		u += "&" + example
	}
	return u
}
