package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Default meal values used when a field is missing or unusable
const (
	DefaultDay       = "Monday"
	DefaultBreakfast = "Masala Dosa"
	DefaultSnack     = "Fruit Chaat"
	DefaultLunch     = "Veg Thali"
)

// MealPlan one day of meals
type MealPlan struct {
	Day       string `json:"Day"`
	Breakfast string `json:"Breakfast"`
	Snack     string `json:"Snack"`
	Lunch     string `json:"Lunch"`
}

// DefaultMealPlan the plan used when nothing usable was supplied
func DefaultMealPlan() MealPlan {
	return MealPlan{
		Day:       DefaultDay,
		Breakfast: DefaultBreakfast,
		Snack:     DefaultSnack,
		Lunch:     DefaultLunch,
	}
}

// Dish returns the dish for a label role, empty for unknown roles
func (m MealPlan) Dish(role string) string {
	switch strings.ToLower(role) {
	case "breakfast":
		return m.Breakfast
	case "snack":
		return m.Snack
	case "lunch":
		return m.Lunch
	case "day":
		return m.Day
	default:
		return ""
	}
}

// ParseMealPlan decodes a request body holding one meal object or an array
// of them (the first element is used). Fields that are missing, blank or not
// strings fall back to their defaults one by one. The returned plan is always
// usable; a non-nil error reports that the body itself could not be decoded.
func ParseMealPlan(body []byte) (MealPlan, error) {
	plan := DefaultMealPlan()

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return plan, nil
	}

	var raw any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return plan, fmt.Errorf("invalid meal data: %w", err)
	}

	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return plan, nil
		}
		raw = list[0]
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return plan, fmt.Errorf("invalid meal data: expected an object, got %T", raw)
	}

	plan.Day = pick(fields, "Day", plan.Day)
	plan.Breakfast = pick(fields, "Breakfast", plan.Breakfast)
	plan.Snack = pick(fields, "Snack", plan.Snack)
	plan.Lunch = pick(fields, "Lunch", plan.Lunch)

	return plan, nil
}

// pick returns the trimmed string under key, or def
func pick(fields map[string]any, key, def string) string {
	v, ok := fields[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
