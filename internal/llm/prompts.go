package llm

import "strings"

// Prompt intents
const (
	PromptFileSummary     = "fileSummary"
	PromptProjectSummary1 = "projectSummary1"
	PromptProjectSummary2 = "projectSummary2"
	PromptSummary2Graph   = "summary2Graph"
)

// DefaultLanguage is the prompt variant used when the requested language has
// no localized text.
const DefaultLanguage = "ZH"

// prompts maps "<intent><LANG>" to the system prompt text. Every intent must
// have a ZH variant; other variants are optional.
var prompts = map[string]string{
	PromptFileSummary + "EN": `You are a code summarization expert. Convert the numbered source file you receive into AGL (Abstract General Language) annotations: short, plain-language notes that describe behavior without any programming terminology.

Rules:
- Every annotation starts with "#> ".
- One annotation per key step, numbered "1.", "2.", ...
- Each annotation targets the original line number it describes.
- Ignore logging statements. No trailing punctuation.

Also produce:
- summary: one short plain-language description of the file.
- overview.behavior: what the file does, under 50 words.
- overview.markdown: a markdown document listing each capability with the functions involved.

Reply with JSON only, no code fence:
{"data":{"summary":"...","overview":{"behavior":"...","markdown":"..."},"funcs":[{"func_name":"Class.method","agls":[{"line":12,"agl":"#> 1. ..."}]}]}}`,

	PromptFileSummary + "ZH": `你是代码摘要专家。请将收到的带行号源代码转换为 AGL（抽象通用语言）注解：不包含任何编程术语、贴近日常语言的简短说明。

要求：
- 每条注解以 "#> " 开头，采用 "1." "2." 的编号格式。
- 每条注解对应其描述代码的原始行号。
- 忽略所有日志语句，结尾不加标点。

同时输出：
- summary：一句话描述该文件。
- overview.behavior：50 字以内描述代码行为。
- overview.markdown：markdown 格式，列点说明每个功能及涉及的函数。

仅回复 JSON，不要使用代码围栏：
{"data":{"summary":"...","overview":{"behavior":"...","markdown":"..."},"funcs":[{"func_name":"类名.方法","agls":[{"line":12,"agl":"#> 1. ..."}]}]}}`,

	PromptProjectSummary1 + "EN": `You receive the file tree of a project. List the supporting documents (README, docs, configuration notes; never code or images) that should be read to understand the project.

Reply with JSON only: {"data":["relative/path/one.md","relative/path/two.txt"]}`,

	PromptProjectSummary1 + "ZH": `你将收到一个项目的文件树。请列出理解该项目需要阅读的说明性文档（如 README、docs；不包括代码和图片）。

仅回复 JSON：{"data":["相对路径/one.md","相对路径/two.txt"]}`,

	PromptProjectSummary2 + "EN": `You receive the concatenated contents of a project's supporting documents. Condense them into one explanation document describing what the project does and how it is organized.

Reply with JSON only: {"data":{"doc":"..."}}`,

	PromptProjectSummary2 + "ZH": `你将收到项目说明文档的合并内容。请将其浓缩为一份解释文档，说明该项目的用途和组织方式。

仅回复 JSON：{"data":{"doc":"..."}}`,

	PromptSummary2Graph + "EN": `You receive a project file tree ([FILETREE]), per-file behavior descriptions ([FILEDESC]) and a project explanation ([EXPLANATION]). Infer the project's modules and their relationships.

Produce:
- graph: a mermaid flowchart describing the module relationships.
- data: a list of modules, each with name, description and a fileTree of the files it owns; every node carries name, path, description, type ("directory" or "file") and children.

Reply with JSON only: {"graph":"flowchart TD; ...","data":[{"name":"...","description":"...","fileTree":[{"name":"...","path":"...","description":"...","type":"file","children":[]}]}]}`,

	PromptSummary2Graph + "ZH": `你将收到项目文件树（[FILETREE]）、各文件行为描述（[FILEDESC]）和项目解释文档（[EXPLANATION]）。请推断项目的模块划分及其关系。

输出：
- graph：描述模块关系的 mermaid 流程图。
- data：模块列表，每个模块包含 name、description 和该模块拥有文件的 fileTree；每个节点包含 name、path、description、type（"directory" 或 "file"）和 children。

仅回复 JSON：{"graph":"flowchart TD; ...","data":[{"name":"...","description":"...","fileTree":[{"name":"...","path":"...","description":"...","type":"file","children":[]}]}]}`,
}

// Prompt returns the system prompt for an intent in the requested language.
// Unknown language variants fall back to the default variant, so the result
// is always non-empty for a known intent.
func Prompt(intent, language string) string {
	lang := strings.ToUpper(strings.TrimSpace(language))
	if lang == "" {
		lang = DefaultLanguage
	}
	if text, ok := prompts[intent+lang]; ok {
		return text
	}
	return prompts[intent+DefaultLanguage]
}
