package processor

import (
	"github.com/LJTian/newsdigest/internal/collector"
)

// Verdict 是附在每条新闻上的核实结论占位，本系统从不解析它
type Verdict string

const VerdictUnverified Verdict = "unverified"

// Annotations 是富化阶段附加的固定结构
type Annotations struct {
	Narrative    string   `json:"narrative"`
	Context      string   `json:"context"`
	ExpertNote   string   `json:"expertNote"`
	SummaryLines []string `json:"summaryLines"`
}

// NewsItem 是去重、排序、富化阶段流转的统一结构。
// ID 与 Annotations 只由 Enricher 写入。
type NewsItem struct {
	ID            int              `json:"id"`
	Title         string           `json:"title"`
	Summary       string           `json:"summary"`
	Source        string           `json:"source"`
	PublishedDate string           `json:"date"`
	URL           string           `json:"url,omitempty"`
	Origin        collector.Origin `json:"origin"`
	Verdict       Verdict          `json:"verdict"`
	Annotations   Annotations      `json:"annotations"`
}

// FromCandidates 丢弃标题过短的候选，其余转换为 NewsItem，保持原有顺序
func FromCandidates(cands []collector.Candidate, minTitle int) []NewsItem {
	out := make([]NewsItem, 0, len(cands))
	for _, c := range cands {
		if c.Title == "" || collector.RuneLen(c.Title) < minTitle {
			continue
		}
		out = append(out, NewsItem{
			Title:         c.Title,
			Summary:       c.Summary,
			Source:        c.Source,
			PublishedDate: c.PublishedDate,
			URL:           c.URL,
			Origin:        c.Origin,
			Verdict:       VerdictUnverified,
		})
	}
	return out
}

// Processor 串起去重、排序截断、富化三步
type Processor struct {
	Deduper  Deduper
	Ranker   Ranker
	Enricher Enricher
}

func NewProcessor(d Deduper, r Ranker, e Enricher) *Processor {
	return &Processor{Deduper: d, Ranker: r, Enricher: e}
}

// Process 返回最终有序、已编号的新闻列表，以及去重后的数量
func (p *Processor) Process(items []NewsItem) ([]NewsItem, int) {
	unique := p.Deduper.Dedupe(items)
	ranked := p.Ranker.Rank(unique)
	return p.Enricher.Enrich(ranked), len(unique)
}
