package translate

import (
	"fmt"

	"hypothesis-rating/internal/models"
)

// systemInstruction frames every request as an academic translation task
const systemInstruction = `You are a professional translator of scientific research texts from English into Simplified Chinese.
Keep the academic register, use established Chinese terminology, and preserve the logical structure of the original.
Always answer with a single JSON object and nothing else.`

const promptTemplate = `请将以下英文科学研究假设翻译成中文，保持学术性和专业性，确保翻译准确且符合中文表达习惯。

英文内容：
title: %s
Problem_Statement: %s
Motivation: %s
Proposed_Method: %s
Step_by_Step_Experiment_Plan: %s
Test_Case_Examples: %s
Fallback_Plan: %s

翻译要求：
1. 保持原文的科学严谨性
2. 使用准确的学术术语
3. 确保句子结构清晰
4. 保持原文的逻辑关系
5. 返回JSON格式，包含所有翻译后的字段

请返回JSON格式的翻译结果，格式如下：
{
    "title": "翻译后的标题",
    "Problem_Statement": "翻译后的问题陈述",
    "Motivation": "翻译后的动机",
    "Proposed_Method": "翻译后的方法",
    "Step_by_Step_Experiment_Plan": "翻译后的实验计划",
    "Test_Case_Examples": "翻译后的测试案例",
    "Fallback_Plan": "翻译后的备用计划"
}`

// BuildPrompt renders the user prompt for one hypothesis
func BuildPrompt(c models.Content) string {
	return fmt.Sprintf(promptTemplate,
		c.Title,
		c.ProblemStatement,
		c.Motivation,
		c.ProposedMethod,
		c.StepByStepExperimentPlan,
		c.TestCaseExamples,
		c.FallbackPlan,
	)
}
