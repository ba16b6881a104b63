package transform

import (
	"context"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Chain is a rule's loader list. Steps are stored in declaration order.
type Chain struct {
	rule  string
	steps []Transformer
}

// NewChain instantiates every loader the rule names.
func NewChain(env Env, rule config.RuleConfig) (*Chain, error) {
	c := &Chain{rule: rule.Label()}
	for _, name := range rule.Use {
		name := name
		t, err := New(name, env, func(v any) error { return rule.DecodeOptions(name, v) })
		if err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "cannot construct loader").
				Fatal().
				WithContext("rule", rule.Label()).
				WithContext("loader", name).
				Build()
		}
		c.steps = append(c.steps, t)
	}
	return c, nil
}

// Loaders returns loader names in declaration order.
func (c *Chain) Loaders() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name()
	}
	return names
}

// Find returns the first step named name.
func (c *Chain) Find(name string) (Transformer, bool) {
	for _, s := range c.steps {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Apply runs the steps right to left.
func (c *Chain) Apply(ctx context.Context, a *Asset) error {
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := c.steps[i]
		if err := step.Transform(ctx, a); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryTransform, "transform failed").
				Immediate().
				WithContext("rule", c.rule).
				WithContext("loader", step.Name()).
				WithContext("file", a.Rel).
				Build()
		}
	}
	return nil
}
