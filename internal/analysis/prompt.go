package analysis

import "fmt"

// BuildAnalysisPrompt generates the analyst prompt. The transcript comes
// from independently transcribed segments, so the prompt asks for a speaker
// smoothing pass before the actual analysis.
func BuildAnalysisPrompt(meta Meta, transcript string) string {
	prompt := "You are an expert meeting analyst and diarization corrector.\n\n"
	prompt += "Your job is to take a raw transcript that may contain:\n"
	prompt += "- inconsistent speaker boundaries,\n"
	prompt += "- incorrect speaker switches,\n"
	prompt += "- short fragmented lines,\n"
	prompt += "- semantic drift between segments,\n"
	prompt += "- or split utterances that belong together.\n\n"

	prompt += "Before performing any meeting analysis, apply a speaker smoothing and correction pass:\n\n"
	prompt += "=== DIARIZATION CONSOLIDATION ===\n"
	prompt += "1) Reconstruct the conversation with inferred speakers using the minimal number of speaker labels needed.\n"
	prompt += "2) Merge consecutive segments that clearly belong to the same speaker based on coherence, grammar, tone or topic continuity.\n"
	prompt += "3) Correct speaker clusters that are obviously mis-assigned; a one-sentence speaker switch that is contextually implausible is the same speaker.\n"
	prompt += "4) Preserve long-range continuity; when the transcript is ambiguous, choose the assignment with the fewest contradictions.\n"
	prompt += "5) Mark every correction inline: [merged], [reassigned], [consolidated], [uncertain].\n\n"
	prompt += "After this correction layer, output the cleaned dialog.\n\n"

	prompt += "=== MEETING ANALYSIS ===\n"
	prompt += "Based solely on the cleaned dialog:\n"
	prompt += "1) Identify action items per participant.\n"
	prompt += "2) Identify dependencies and blockers.\n"
	prompt += "3) Identify deadlines or time references.\n"
	prompt += "4) Identify misalignments and risks (process, technical, interpersonal).\n\n"

	prompt += "Rules:\n"
	prompt += "- Do NOT hallucinate new events; use only what is present.\n"
	prompt += "- If an insight is inferred but not explicit, tag it as \"(inferred)\".\n"
	prompt += "- Always output everything in English.\n\n"

	prompt += fmt.Sprintf("Meeting name: %s\n", meta.MeetingName)
	prompt += fmt.Sprintf("Topic: %s\n", meta.Topic)
	prompt += fmt.Sprintf("Participants: %s\n\n", meta.Participants)

	prompt += "--- TRANSCRIPT START ---\n"
	prompt += transcript
	prompt += "\n--- TRANSCRIPT END ---\n"

	return prompt
}
