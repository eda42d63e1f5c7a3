package prompt

import (
	"strings"

	"ContentRewriter/internal/domain"
)

// MaxContentRunes caps the article text inserted into a prompt.
const MaxContentRunes = 4000

// CustomVariantID names the single template used when A/B testing is off.
const CustomVariantID = "custom"

const responseContract = `
Return ONLY one JSON object, no markdown, with these keys:
{"title": "...", "metaDescription": "...", "body": "<h2>...</h2><p>...</p>", "keywords": ["..."], "category": "...", "qualityScore": 0, "originalityScore": 0, "seoScore": 0}
`

const articleBlock = `
ORIGINAL ARTICLE:
Title: {article_title}
Source: {article_source}
URL: {article_url}
Content: {article_content}
`

// DefaultTemplate is used when A/B testing is disabled and no custom
// template is configured.
const DefaultTemplate = `You are a professional blog editor.

Rewrite the article below COMPLETELY:

RULES:
1. Never copy sentences from the original
2. At least 800 words
3. Use HTML with H2 and H3 headings
4. End with: "Source: {article_source} - {article_url}"
` + articleBlock + responseContract

// DefaultVariants is the built-in A/B pool.
func DefaultVariants() []domain.PromptVariant {
	return []domain.PromptVariant{
		{ID: "journalistic", Template: `You are an award-winning business journalist writing for professional investors.

STYLE: formal, investigative, data-driven. TONE: neutral and analytical.
STRUCTURE: strong lead, context, expert analysis, data and statistics, grounded projections.
RULES: no personal opinion, cite original sources, use concrete figures, at least 1000 words.
` + articleBlock + responseContract},
		{ID: "casual", Template: `You are a content creator who explains complex topics to a general audience.

STYLE: conversational storytelling. TONE: friendly and close.
STRUCTURE: irresistible hook, simple explanation, everyday examples, actionable tips, motivating close.
RULES: use analogies, explain jargon, 800-1000 words.
` + articleBlock + responseContract},
		{ID: "viral", Template: `You are a growth writer producing engaging but informative articles.

STYLE: punchy and dynamic. TONE: curious and revealing.
STRUCTURE: compelling title, emotional hook, scannable lists, surprises, strong call to action.
RULES: numbers in headings, realistic promises, rich formatting, 700-900 words.
` + articleBlock + responseContract},
		{ID: "seo", Template: `You are an SEO specialist writing content built to rank.

STYLE: structured and keyword-rich. TONE: authoritative.
STRUCTURE: H1 with the main keyword, long-tail introduction, keyword H2 per subtopic, FAQ section, semantic conclusion.
RULES: 1-2% keyword density, meta description with a call to action, 1200+ words.
` + articleBlock + responseContract},
		{ID: "deep_analysis", Template: `You are a certified analyst writing in-depth reports.

STYLE: technical and detailed. TONE: precise.
STRUCTURE: executive summary, quantitative analysis, qualitative analysis, market comparison, risks and opportunities, recommendations.
RULES: cite studies, correct terminology, several scenarios, appropriate disclaimers, 1500+ words.
` + articleBlock + responseContract},
	}
}

// Render fills the template placeholders for item. Content is truncated
// to MaxContentRunes.
func Render(template string, item domain.CandidateItem) string {
	content := item.Content
	if r := []rune(content); len(r) > MaxContentRunes {
		content = string(r[:MaxContentRunes])
	}
	return strings.NewReplacer(
		"{article_title}", item.Title,
		"{article_source}", item.Source,
		"{article_url}", item.URL,
		"{article_content}", content,
	).Replace(template)
}
