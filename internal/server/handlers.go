package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/johnayoung/dili-agents/internal/agent"
	"github.com/johnayoung/dili-agents/internal/label"
	"github.com/johnayoung/dili-agents/internal/output"
	"github.com/johnayoung/dili-agents/internal/vote"
)

// adhocPanel labels metrics for aggregations that name no panel.
const adhocPanel = "adhoc"

type panelSummary struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Mode        agent.Mode `json:"mode"`
	Strategy    string     `json:"strategy"`
	Labels      []string   `json:"labels,omitempty"`
	Agents      []string   `json:"agents"`
	Aggregator  string     `json:"aggregator,omitempty"`
}

func (s *Server) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) listPanels(c fiber.Ctx) error {
	var out []panelSummary
	for _, p := range s.deps.Panels.Panels() {
		strategy, _ := p.Strategy()
		sum := panelSummary{
			Name:        p.Name,
			Description: p.Description,
			Mode:        p.Mode,
			Strategy:    strategy.Name(),
			Labels:      p.Labels,
		}
		for _, a := range p.Agents {
			sum.Agents = append(sum.Agents, a.Name)
		}
		if p.Aggregator != nil {
			sum.Aggregator = p.Aggregator.Name
		}
		out = append(out, sum)
	}
	return jsonSuccess(c, out)
}

type aggregateRequest struct {
	Responses []string `json:"responses"`
	Panel     string   `json:"panel,omitempty"`
	Strategy  string   `json:"strategy,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// aggregate runs the vote over caller-supplied raw answers without querying
// any agent.
func (s *Server) aggregate(c fiber.Ctx) error {
	var body aggregateRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid JSON body")
	}

	var (
		strategy vote.ParseStrategy
		err      error
		panel    = adhocPanel
	)
	if body.Panel != "" {
		p, perr := s.deps.Panels.Get(body.Panel)
		if perr != nil {
			return jsonError(c, fiber.StatusNotFound, perr.Error())
		}
		panel = p.Name
		strategy, err = p.Strategy()
	} else {
		strategy, err = vote.NewStrategy(body.Strategy, body.Labels)
	}
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	agg := vote.NewAggregator(strategy,
		vote.WithLogger(s.log.With(slog.String("panel", panel))),
		vote.WithObserver(s.deps.Metrics.Panel(panel)))
	return jsonSuccess(c, agg.Run(body.Responses))
}

type classifyRequest struct {
	Panel string `json:"panel"`
	Input string `json:"input,omitempty"`
	Drug  string `json:"drug,omitempty"`
}

func (s *Server) classify(c fiber.Ctx) error {
	var body classifyRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(body.Input) == "" && body.Drug == "" {
		return jsonError(c, fiber.StatusBadRequest, "input or drug is required")
	}
	if s.deps.Engine == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "classification is not configured")
	}

	panel, err := s.deps.Panels.Get(body.Panel)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, err.Error())
	}

	ctx := c.Context()
	input := body.Input
	var review *label.Review
	if body.Drug != "" {
		if s.deps.Reviewer == nil {
			return jsonError(c, fiber.StatusBadRequest, "drug label review is not configured")
		}
		review, err = s.deps.Reviewer.Review(ctx, body.Drug)
		if errors.Is(err, label.ErrDrugNotFound) {
			return jsonError(c, fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			s.log.Error("label review failed", slog.String("drug", body.Drug), "error", err)
			return jsonError(c, fiber.StatusBadGateway, "label review failed")
		}
		input = review.Evidence()
	}

	outcome, err := s.deps.Engine.Run(ctx, panel, input)
	if err != nil {
		s.log.Error("classification failed", slog.String("panel", panel.Name), "error", err)
		return jsonError(c, fiber.StatusBadGateway, err.Error())
	}

	res := output.FromOutcome(outcome)
	res.Review = review
	return jsonSuccess(c, res)
}
