package imagegen

import (
	"fmt"
	"strings"
	"time"

	"meal-image-service/internal/types"
)

// BuildPrompt describes the photo for a day of meals. seed and now only add
// variation so repeated requests for the same menu do not look identical.
func BuildPrompt(meal types.MealPlan, seed string, now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Create a professional, appetizing food photograph of the meals for %s. ", meal.Day)
	fmt.Fprintf(&sb, "Show three dishes arranged on a clean table: %s for breakfast, %s as a snack and %s for lunch. ",
		meal.Breakfast, meal.Snack, meal.Lunch)
	sb.WriteString("Use natural soft lighting, a shallow depth of field and a top-down or 45 degree angle. ")
	sb.WriteString("Serve each dish in its traditional tableware with realistic textures and vibrant colours. ")
	sb.WriteString("Keep the upper left corner free of food and props so a logo can be placed there, ")
	sb.WriteString("and keep the left third of the image calm and uncluttered for text labels. ")
	sb.WriteString("Do not render any text, letters, watermarks or logos in the image. ")
	fmt.Fprintf(&sb, "Variation seed: %s. Timestamp: %s.", seed, now.UTC().Format(time.RFC3339))

	return sb.String()
}
