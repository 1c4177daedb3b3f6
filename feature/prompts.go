package feature

import (
	"fmt"
	"strings"
)

// Section headings the designer is instructed to emit and the workflow
// extracts from the design document.
const (
	HeadingUserFlow           = "User Flow"
	HeadingUILayout           = "UI Layout"
	HeadingInteractionDetails = "Interaction Details"
)

// feedbackDelimiter separates entries when the full feedback history is
// rendered into a revise prompt.
const feedbackDelimiter = "\n---\n"

const designerSystemPrompt = `You are a senior interaction designer. You create clear, complete
interaction designs from product requirements, and you review
implementations against your designs with a critical eye.

When designing, structure your response with markdown headings for
"User Flow", "UI Layout", and "Interaction Details".

When reviewing, end your response with an explicit verdict: APPROVED if
the implementation fulfills the design, NOT APPROVED if it does not.`

const developerSystemPrompt = `You are a senior front-end developer. You implement features exactly as
specified in the interaction design you are given. Produce complete,
working code. When given review feedback, address every point without
regressing behavior that already passed review.`

func designPrompt(requirement string) string {
	return fmt.Sprintf(`Create an interaction design for the following feature requirement.

Requirement:
%s

Structure the design with these markdown sections:

## User Flow
## UI Layout
## Interaction Details

Be specific enough that a developer can implement the feature without
asking follow-up questions.`, requirement)
}

func developPrompt(s State) string {
	return fmt.Sprintf(`Implement the feature described by the following interaction design.

Design:
%s

User flow:
%s

UI layout:
%s

Interaction details:
%s

Return the complete implementation.`, s.DesignSpec, s.UserFlow, s.UILayout, s.InteractionDetails)
}

func revisePrompt(s State) string {
	latest := ""
	if len(s.Feedback) > 0 {
		latest = s.Feedback[len(s.Feedback)-1]
	}

	return fmt.Sprintf(`Revise your implementation to address the review feedback.

Design:
%s

Previous implementation:
%s

Latest review feedback:
%s

All feedback so far:
%s

Return the complete revised implementation, not a diff. Address the
latest feedback without reintroducing issues raised earlier.`,
		s.DesignSpec, s.Code, latest, strings.Join(s.Feedback, feedbackDelimiter))
}

func reviewPrompt(s State) string {
	return fmt.Sprintf(`Review the following implementation against the interaction design.

Design:
%s

Implementation:
%s

Check that every part of the design is implemented correctly. List any
problems you find. End with an explicit verdict: APPROVED or NOT APPROVED.`,
		s.DesignSpec, s.Code)
}
