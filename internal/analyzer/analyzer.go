// Package analyzer wires the question pipeline: classify, resolve dates,
// fetch the report, summarize. Each request runs the chain to completion
// sequentially; the only suspension points are the outbound API calls.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fumiaki0604/ga4-analytics-chat/apimodels"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/ga4"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/query"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/summary"
)

type Analyzer struct {
	classifier query.Classifier
	ga4Client  *ga4.Client
	now        func() time.Time
}

func New(classifier query.Classifier, ga4Client *ga4.Client) *Analyzer {
	return &Analyzer{
		classifier: classifier,
		ga4Client:  ga4Client,
		now:        time.Now,
	}
}

// Analyze answers one question. Classification is best-effort and cannot
// fail; a failed report fetch propagates unchanged so the caller never builds
// an answer from missing data.
func (a *Analyzer) Analyze(ctx context.Context, req apimodels.ChatRequest) (*apimodels.ChatResponse, error) {
	slog.Info("starting analysis", "question", req.Question, "property", req.PropertyID)
	startTime := a.now()

	cfg := a.classifier.Classify(ctx, req.Question, req.PropertyID)
	slog.Debug("question classified", "analysisType", cfg.AnalysisType, "metrics", cfg.Metrics, "dimensions", cfg.Dimensions)

	if cfg.AnalysisType == query.PeriodComparison {
		return a.analyzePeriodComparison(ctx, req, cfg, startTime)
	}

	dateRange := query.Resolve(cfg.Timeframe, a.now())

	records, err := a.ga4Client.RunReport(ctx, ga4.FetchParams{
		PropertyID:  req.PropertyID,
		StartDate:   dateRange.StartDate,
		EndDate:     dateRange.EndDate,
		Metrics:     cfg.Metrics,
		Dimensions:  cfg.Dimensions,
		AccessToken: req.AccessToken,
		Limit:       req.Options.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("report fetch failed: %w", err)
	}

	answer := summary.Summarize(records, req.Question, cfg.AnalysisType)

	return &apimodels.ChatResponse{
		Answer:   answer,
		Analysis: cfg,
		Metadata: apimodels.ChatMetadata{
			Duration:  time.Since(startTime).String(),
			DateRange: dateRange,
			Rows:      len(records),
		},
	}, nil
}

// analyzePeriodComparison answers 先月vs今月 style questions with two
// sequential fetches, one per period.
func (a *Analyzer) analyzePeriodComparison(ctx context.Context, req apimodels.ChatRequest, cfg query.AnalysisConfig, startTime time.Time) (*apimodels.ChatResponse, error) {
	spec1, spec2 := query.ExtractComparisonPeriods(req.Question)
	today := a.now()
	range1 := query.ResolvePeriod(spec1, today)
	range2 := query.ResolvePeriod(spec2, today)

	slog.Debug("comparison periods resolved",
		"period1", spec1.Label, "range1", range1, "period2", spec2.Label, "range2", range2)

	fetch := func(r query.DateRange) ([]ga4.Record, error) {
		return a.ga4Client.RunReport(ctx, ga4.FetchParams{
			PropertyID:  req.PropertyID,
			StartDate:   r.StartDate,
			EndDate:     r.EndDate,
			Metrics:     cfg.Metrics,
			Dimensions:  cfg.Dimensions,
			AccessToken: req.AccessToken,
			Limit:       req.Options.Limit,
		})
	}

	records1, err := fetch(range1)
	if err != nil {
		return nil, fmt.Errorf("report fetch failed for %s: %w", spec1.Label, err)
	}
	records2, err := fetch(range2)
	if err != nil {
		return nil, fmt.Errorf("report fetch failed for %s: %w", spec2.Label, err)
	}

	answer := summary.SummarizePeriodComparison(
		summary.PeriodData{Label: spec1.Label, Data: records1},
		summary.PeriodData{Label: spec2.Label, Data: records2},
		req.Question,
	)

	return &apimodels.ChatResponse{
		Answer:   answer,
		Analysis: cfg,
		Metadata: apimodels.ChatMetadata{
			Duration:  time.Since(startTime).String(),
			DateRange: query.DateRange{StartDate: range1.StartDate, EndDate: range2.EndDate},
			Rows:      len(records1) + len(records2),
		},
	}, nil
}
