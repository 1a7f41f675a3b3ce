package analysis

import (
	"bytes"
	"encoding/json"
	"strings"
)

const systemPrompt = "你是一位专业且务实的网球双打战术教练。你对左手持拍、单反球员的特质有深刻理解。请基于客观的生理数据，为我制定高效的双打比赛策略。"

const userPromptHead = `# Player Profile
- **Handedness**: 左手持拍 (Left-handed)
- **Backhand**: 单手反拍 (One-handed backhand)
- **Level**: NTRP 4.0
- **Context**: 这是一场双打比赛 (Doubles Match)。

# Style Guidelines
- **语言风格**：平实、直接、客观。
- **核心要求**：重点分析双打特有的网前配合、左手发球优势及战术布局。拒绝废话，直指本质。
- **篇幅限制**：全文字数控制在 250 字以内。

# Task
第一步：数据有效性检查
如果 ` + "`duration`" + `（时长）< 10 分钟 或 ` + "`avgHeartRate`" + `（平均心率）< 70 bpm，请直接输出：“**数据无效：时长过短或强度不足，无法进行双打战术分析。**” 并结束回答。如果数据有效，请不要输出任何确认信息，直接跳至第二步。

第二步：双打战术分析
请跳过数据罗列，直接输出以下 3 点：
1. **体能与覆盖率评估**：
   * 结合数据评估在双打快节奏下的体能储备和场上覆盖积极性。
2. **关键生理瓶颈与双打隐患**：
   * 指出最影响双打表现（如网前反应、移动切换）的具体问题。
3. **双打战术调整建议**：
   * 基于左手优势和体能现状，提供具体的双打打法（如 I-Formation、中路封锁、斜线切削压制）。

# Data (JSON)
`

// BuildPrompt renders the user message for one workout record. Keys are sorted and
// non-ASCII text is written as-is.
func BuildPrompt(raw map[string]any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if raw == nil {
		raw = map[string]any{}
	}
	if err := encoder.Encode(raw); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(userPromptHead)
	b.Write(buf.Bytes())
	return b.String(), nil
}
