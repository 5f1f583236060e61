package imagegen

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const genericTemperature = 0.4

// TypeSpec couples a type's sampling config with its prompt template. Types
// flagged UsesWhiteBackground assume a clean background in their prompt and are
// generated from the white-background output when one exists.
type TypeSpec struct {
	Temperature         float64
	DefaultAspectRatio  AspectRatio
	UsesWhiteBackground bool
	prompt              func(p Product) []string
}

// TypeTable is the single source of truth for per-type generation behaviour.
var TypeTable = map[ImageType]TypeSpec{
	TypeWhiteBackground: {Temperature: 0.2, DefaultAspectRatio: Aspect1x1, prompt: whiteBackgroundPrompt},
	TypeMeasuringTape:   {Temperature: 0.2, DefaultAspectRatio: Aspect3x4, UsesWhiteBackground: true, prompt: measuringTapePrompt},
	TypeDetail:          {Temperature: 0.4, DefaultAspectRatio: Aspect1x1, prompt: detailPrompt},
	TypeComposite:       {Temperature: 0.3, DefaultAspectRatio: Aspect1x1, prompt: compositePrompt},
	TypeTray:            {Temperature: 0.3, DefaultAspectRatio: Aspect4x3, UsesWhiteBackground: true, prompt: trayPrompt},
	TypeLifestyle:       {Temperature: 0.7, DefaultAspectRatio: Aspect4x3, prompt: lifestylePrompt},
	TypeSeasonal:        {Temperature: 0.8, DefaultAspectRatio: Aspect1x1, prompt: seasonalPrompt},
	TypeDanishCart:      {Temperature: 0.3, DefaultAspectRatio: Aspect3x4, UsesWhiteBackground: true, prompt: danishCartPrompt},
}

// DependsOnWhiteBackground reports whether t prefers the white-background output
// as its generation source.
func DependsOnWhiteBackground(t ImageType) bool {
	entry, ok := TypeTable[t]
	return ok && entry.UsesWhiteBackground
}

// Build returns the instruction and generation config for an image type.
// Unknown types get a generic product-photo prompt.
func Build(t ImageType, p Product) (string, GenerationConfig) {
	entry, ok := TypeTable[t]
	if !ok {
		return strings.Join(genericPrompt(p), " "), GenerationConfig{
			Temperature:        genericTemperature,
			DefaultAspectRatio: Aspect1x1,
		}
	}
	return strings.Join(entry.prompt(p), " "), GenerationConfig{
		Temperature:        entry.Temperature,
		DefaultAspectRatio: entry.DefaultAspectRatio,
	}
}

// BuildComposite is the prompt for combining two distinct subjects supplied as
// separate source images.
func BuildComposite(p Product) string {
	parts := []string{
		fmt.Sprintf("Combine the subjects of the provided photos into one catalog image featuring %s.", displayName(p)),
		"Place them side by side on a neutral light backdrop at true relative scale.",
		"Keep every subject's shape, colours and pot exactly as photographed; do not merge or blend them.",
	}
	parts = append(parts, sizeFacts(p)...)
	return strings.Join(append(parts, preserveRule), " ")
}

const preserveRule = "Preserve the real plant: same leaf count, shape, colour and pot; no added text or watermarks."

func genericPrompt(p Product) []string {
	parts := []string{fmt.Sprintf("Create a professional product photograph of %s.", displayName(p))}
	parts = append(parts, sizeFacts(p)...)
	return append(parts, "Soft studio lighting, sharp focus, neutral background.", preserveRule)
}

func whiteBackgroundPrompt(p Product) []string {
	parts := []string{
		fmt.Sprintf("Isolate %s on a pure white (#FFFFFF) seamless background.", displayName(p)),
		"Remove every background object, surface edge and reflection.",
		"Keep a soft, natural contact shadow directly below the pot.",
		"Even studio lighting from the front, no colour cast.",
	}
	parts = append(parts, sizeFacts(p)...)
	return append(parts, preserveRule)
}

func measuringTapePrompt(p Product) []string {
	parts := []string{
		fmt.Sprintf("Show %s on a clean white background with a vertical measuring tape standing directly beside it.", displayName(p)),
		"The tape starts at 0cm exactly at the surface the pot stands on.",
	}
	if p.HeightCM > 0 {
		height := formatCM(p.HeightCM)
		parts = append(parts,
			fmt.Sprintf("The highest point of the plant lines up exactly with the %s mark on the tape.", height),
			fmt.Sprintf("Mark the %s reading clearly with a thin horizontal line.", height),
		)
	} else {
		parts = append(parts, "Align the top of the plant with the tape without adding a numeric label.")
	}
	parts = append(parts,
		"Label tick marks every 10cm in a clean sans-serif font.",
		"Do not rescale the plant to fit the tape; the tape follows the plant's true size.",
	)
	if p.PotDiameterCM > 0 {
		parts = append(parts, fmt.Sprintf("Pot diameter is %s.", formatCM(p.PotDiameterCM)))
	}
	return append(parts, preserveRule)
}

func detailPrompt(p Product) []string {
	parts := []string{
		fmt.Sprintf("Macro close-up of %s showing leaf texture, veins and surface detail.", displayName(p)),
		"Shallow depth of field, crisp focus on the foreground foliage.",
	}
	if p.CanBloom {
		parts = append(parts, "Feature an open flower in the focal point.")
	}
	if p.Artificial {
		parts = append(parts, "This is a high-quality artificial plant: show the realistic material finish honestly, without dew or soil.")
	}
	return append(parts, preserveRule)
}

func compositePrompt(p Product) []string {
	return []string{
		fmt.Sprintf("Create a catalog composite of %s showing the plant from the front, the side and from above in one image.", displayName(p)),
		"Arrange the three views evenly on a light neutral background with consistent lighting and scale.",
		preserveRule,
	}
}

func trayPrompt(p Product) []string {
	count := 0
	carrierType := "nursery"
	if p.Carrier != nil {
		count = p.Carrier.PlantsPerTray
		if strings.TrimSpace(p.Carrier.Type) != "" {
			carrierType = strings.TrimSpace(p.Carrier.Type)
		}
	}
	parts := []string{}
	if count > 0 {
		parts = append(parts, fmt.Sprintf("Show exactly %d identical plants of %s arranged in a black %s tray, seen from a 45 degree angle.", count, displayName(p), carrierType))
		parts = append(parts, fmt.Sprintf("Every one of the %d pots must be visible and countable.", count))
	} else {
		parts = append(parts, fmt.Sprintf("Show several identical plants of %s arranged in a black %s tray, seen from a 45 degree angle.", displayName(p), carrierType))
	}
	if p.PotDiameterCM > 0 {
		parts = append(parts, fmt.Sprintf("Each pot is %s in diameter; tray cells match the pot size.", formatCM(p.PotDiameterCM)))
	}
	return append(parts, "Clean white background.", preserveRule)
}

func lifestylePrompt(p Product) []string {
	room := "a bright living room next to a large window"
	switch strings.ToLower(strings.TrimSpace(p.Category)) {
	case "garden", "outdoor":
		room = "a sunny patio with natural stone tiles"
	case "office":
		room = "a modern office with a light oak desk"
	}
	parts := []string{
		fmt.Sprintf("Place %s in %s, styled for an interior magazine.", displayName(p), room),
		"Natural daylight, warm tones, realistic shadows.",
	}
	if p.HeightCM > 0 {
		parts = append(parts, fmt.Sprintf("Keep the plant at a believable %s scale relative to the furniture.", formatCM(p.HeightCM)))
	}
	if p.Artificial {
		parts = append(parts, "It may stand in a low-light corner since it is artificial.")
	}
	return append(parts, preserveRule)
}

func seasonalPrompt(p Product) []string {
	theme := "a cosy winter holiday setting with warm fairy lights and subtle pine decoration"
	if p.CanBloom {
		theme = "a fresh spring setting with pastel decoration and soft morning light"
	}
	return []string{
		fmt.Sprintf("Stage %s in %s.", displayName(p), theme),
		"The plant stays the clear hero of the image; decoration stays in the background.",
		preserveRule,
	}
}

func danishCartPrompt(p Product) []string {
	layers, trays, plants := 0, 0, 0
	if p.Carrier != nil {
		layers, trays, plants = p.Carrier.Layers, p.Carrier.TraysPerLayer, p.Carrier.PlantsPerTray
	}
	parts := []string{fmt.Sprintf("Show a loaded Danish trolley (CC container) of %s in a bright greenhouse aisle.", displayName(p))}
	if layers > 0 {
		parts = append(parts, fmt.Sprintf("The trolley has exactly %d shelves, all filled.", layers))
	}
	if trays > 0 && plants > 0 {
		parts = append(parts, fmt.Sprintf("Each shelf holds %d trays with %d plants per tray.", trays, plants))
	} else if plants > 0 {
		parts = append(parts, fmt.Sprintf("Each shelf is filled with trays of %d plants.", plants))
	}
	if p.HeightCM > 0 {
		parts = append(parts, fmt.Sprintf("Shelf spacing fits plants %s tall.", formatCM(p.HeightCM)))
	}
	return append(parts, "Galvanised metal trolley, plants upright and evenly spaced.", preserveRule)
}

func sizeFacts(p Product) []string {
	var out []string
	if p.HeightCM > 0 {
		out = append(out, fmt.Sprintf("The plant is %s tall including the pot.", formatCM(p.HeightCM)))
	}
	if p.PotDiameterCM > 0 {
		out = append(out, fmt.Sprintf("Pot diameter %s.", formatCM(p.PotDiameterCM)))
	}
	return out
}

func displayName(p Product) string {
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "" && p.Artificial:
		name = "the artificial plant"
	case name == "":
		name = "the plant"
	case p.Artificial:
		name = fmt.Sprintf("the artificial plant %q", name)
	default:
		name = fmt.Sprintf("%q", name)
	}
	if category := strings.TrimSpace(p.Category); category != "" {
		name = fmt.Sprintf("%s (%s)", name, cases.Title(language.English).String(category))
	}
	return name
}

func formatCM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "cm"
}
