package framework

import (
	"context"
	"fmt"
)

// Step 命名的处理步骤
type Step struct {
	Name string
	Fn   StepFunc
}

// PreProcessor 按顺序执行处理步骤
type PreProcessor struct {
	steps []Step
}

// NewPreProcessor 创建步骤链
func NewPreProcessor(steps ...Step) *PreProcessor {
	return &PreProcessor{steps: steps}
}

// Run 执行步骤链
// 任一步骤返回 error 则立即停止，原错误通过 %w 保留
func (p *PreProcessor) Run(ctx context.Context) error {
	for _, step := range p.steps {
		if err := step.Fn(ctx); err != nil {
			return fmt.Errorf("%s failed: %w", step.Name, err)
		}
	}
	return nil
}
