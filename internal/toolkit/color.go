package toolkit

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentllm/agentllm/internal/credstore"
)

// validColors is the closed set accepted by the favorite-color capability.
var validColors = []string{
	"red", "blue", "green", "darkseagreen4", "yellow", "purple",
	"orange", "pink", "black", "white", "brown",
}

var colorPatterns = []*regexp.Regexp{
	// "my favorite color is blue" / "favorite color: blue"
	regexp.MustCompile(`(?i)(?:my\s+)?favorite\s+colou?r\s+(?:is|=|:)\s+(\w+)`),
	// "set color to blue" / "configure color blue"
	regexp.MustCompile(`(?i)(?:set|configure)\s+colou?r\s+(?:to\s+)?(\w+)`),
	// "color: blue" / "color = blue"
	regexp.MustCompile(`(?i)colou?r\s*[:=]\s*(\w+)`),
}

// colorPreferencePattern matches loose statements like "I like green".
// A match only counts when the captured word is a known color, so small talk
// ("I like pizza") is not mistaken for a malformed credential.
var colorPreferencePattern = regexp.MustCompile(`(?i)\bI\s+(?:like|love|prefer)\s+(\w+)`)

// FavoriteColor stores the user's favorite color as a demo of the required
// configuration flow: the agent refuses to run until the color is supplied.
type FavoriteColor struct {
	creds credstore.Store
}

func NewFavoriteColor(creds credstore.Store) *FavoriteColor {
	return &FavoriteColor{creds: creds}
}

func (c *FavoriteColor) Name() string        { return "favorite-color" }
func (c *FavoriteColor) Required() bool      { return true }
func (c *FavoriteColor) DependsOn() []string { return nil }

func (c *FavoriteColor) IsConfigured(ctx context.Context, userID string) (bool, error) {
	_, err := c.creds.Get(ctx, c.Name(), userID)
	if errors.Is(err, credstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *FavoriteColor) ExtractAndStore(ctx context.Context, message, userID string) (bool, error) {
	color, explicit := extractColor(message)
	if color == "" {
		return false, nil
	}

	if !isValidColor(color) {
		if !explicit {
			return false, nil
		}
		return false, &InvalidCredentialError{
			Capability: c.Name(),
			Reason:     fmt.Sprintf("unsupported color %q, supported colors: %s", color, strings.Join(validColors, ", ")),
		}
	}

	if err := c.creds.Put(ctx, c.Name(), userID, credstore.Record{"color": color}); err != nil {
		return false, fmt.Errorf("store favorite color: %w", err)
	}
	return true, nil
}

func (c *FavoriteColor) CheckAuthorizationRequest(string) bool { return false }

func (c *FavoriteColor) ConfigPrompt(string) string {
	return "Welcome! Before we begin, I need to know your favorite color.\n\n" +
		"Tell me something like:\n" +
		"- \"My favorite color is blue\"\n" +
		"- \"Set color to red\"\n\n" +
		"Supported colors: " + strings.Join(validColors, ", ")
}

func (c *FavoriteColor) Build(ctx context.Context, userID string) (Tool, error) {
	rec, err := c.creds.Get(ctx, c.Name(), userID)
	if err != nil {
		return nil, &BuildError{Capability: c.Name(), Err: err}
	}
	color := rec["color"]
	if !isValidColor(color) {
		return nil, &BuildError{Capability: c.Name(), Err: fmt.Errorf("stored color %q is not valid", color)}
	}
	return &ColorTool{Color: color}, nil
}

func (c *FavoriteColor) Instructions(ctx context.Context, userID string) ([]string, error) {
	rec, err := c.creds.Get(ctx, c.Name(), userID)
	if err != nil {
		return nil, fmt.Errorf("read favorite color: %w", err)
	}
	color := rec["color"]
	return []string{
		fmt.Sprintf("The user's favorite color is %s.", color),
		fmt.Sprintf("When relevant to the conversation, incorporate references to %s.", color),
		"Use the color tools to generate palettes and themes based on this preference.",
	}, nil
}

// Color returns the stored color for a user, for other components that need
// direct access to the preference.
func (c *FavoriteColor) Color(ctx context.Context, userID string) (string, error) {
	rec, err := c.creds.Get(ctx, c.Name(), userID)
	if err != nil {
		return "", err
	}
	return rec["color"], nil
}

func extractColor(message string) (color string, explicit bool) {
	for _, p := range colorPatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			return strings.ToLower(m[1]), true
		}
	}
	if m := colorPreferencePattern.FindStringSubmatch(message); m != nil {
		return strings.ToLower(m[1]), false
	}
	return "", false
}

func isValidColor(color string) bool {
	for _, v := range validColors {
		if v == color {
			return true
		}
	}
	return false
}

// ColorTool is the built handle exposing the user's color preference.
type ColorTool struct {
	Color string
}

func (t *ColorTool) ToolName() string { return "color_tools" }

// Palette returns a tiny themed palette around the favorite color.
func (t *ColorTool) Palette() []string {
	return []string{t.Color, "white", "black"}
}
