package llm

import "strings"

// 分析模式，决定使用的提示词模板
const (
	ModeOverview  = "overview"   // 工作区全貌：活动、讨论、决策、关键成员
	ModeHotTopics = "hot_topics" // 热门话题：聚焦高热度讨论
)

const overviewSystemPrompt = `你是一个专业的社区频道总结助手。根据用户提供的频道消息记录，输出严格的 JSON 格式，包含：
1. overview: 字符串，3-4 句话总结该频道近期活动的全貌（讨论了什么、做出了什么决策、谁是关键参与者）
2. topics: 数组，每个元素为 {"title": "话题标题", "summary": "该话题的简要总结", "participants": ["参与者名称"]}

注意识别决策性表述（"决定"、"通过"、"达成一致"等）并在总结中体现。
只输出 JSON，不要其他内容。总结语言与消息主要语言保持一致。`

const hotTopicsSystemPrompt = `你是一个专业的社区热门话题分析助手。根据用户提供的频道消息记录，识别其中最重要、讨论最热烈的话题，输出严格的 JSON 格式，包含：
1. overview: 字符串，2-3 句话概括该频道的讨论热度与整体氛围
2. topics: 数组，按热度从高到低排列，每个元素为 {"title": "话题标题", "summary": "话题内容与社区态度的简要总结", "participants": ["参与者名称"]}

优先关注：表情回应（消息末尾的"表情回应"标注，回应越多热度越高）数量多的消息、引发多人参与的讨论、公告性内容、正在形成的共识或争议。忽略闲聊和无实质内容的消息。
只输出 JSON，不要其他内容。总结语言与消息主要语言保持一致。`

// userPromptTemplate 用户提示词模板，占位符在调用时替换
const userPromptTemplate = `服务器：{guild_name}
频道：{channel_name}

频道消息记录：
{transcript_text}

请输出 JSON。`

// systemPromptForMode 按分析模式返回系统提示词，未知模式回退到 overview
func systemPromptForMode(mode string) string {
	if mode == ModeHotTopics {
		return hotTopicsSystemPrompt
	}
	return overviewSystemPrompt
}

// renderUserPrompt 替换模板占位符 {guild_name}、{channel_name}、{transcript_text}
func renderUserPrompt(guildName, channelName, transcriptText string) string {
	replacer := strings.NewReplacer(
		"{guild_name}", guildName,
		"{channel_name}", channelName,
		"{transcript_text}", transcriptText,
	)
	return replacer.Replace(userPromptTemplate)
}
