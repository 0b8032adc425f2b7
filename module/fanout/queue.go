package fanout

import (
	"context"

	"PSync/global/config"
	"PSync/service/kafka"
	"PSync/service/natsx"
)

// 队列接壤层：核心只实现任务处理器，投递语义（at-least-once、
// 重试退避）归队列自己管。

// KafkaHandler 绑到扩散 topic 的 handler。返回错误会让 offset
// 不前移，整条任务由消费组重投。ctx 是会话上下文，关停时
// 在途任务随之取消。
func (w *Worker) KafkaHandler() kafka.MessageHandler {
	return func(ctx context.Context, _ string, _ []byte, value []byte) error {
		job, err := DecodeJob(value)
		if err != nil {
			// 解码不了的毒消息重投多少次都没用，记数后吞掉
			w.jobsFail.Add(1)
			return nil
		}
		return w.HandleJob(ctx, job)
	}
}

// NatsHandler JetStream 订阅回调；报错走 Nak 延迟重投
func (w *Worker) NatsHandler() natsx.Handler {
	return func(ctx context.Context, data []byte) error {
		job, err := DecodeJob(data)
		if err != nil {
			w.jobsFail.Add(1)
			return nil
		}
		return w.HandleJob(ctx, job)
	}
}

// EnqueueKafka 生产侧入口（消息写路径调用）。key=chatId，
// 同一会话的任务串行落在同一分区。
func EnqueueKafka(c config.KafkaConfig, job *Job) error {
	data, err := job.Encode()
	if err != nil {
		return err
	}
	return kafka.SendSync(c.FanoutTopic, job.ChatID, data)
}

// EnqueueNats 备选后端；Nats-Msg-Id 用 messageId，服务端窗口内去重
func EnqueueNats(ctx context.Context, cli *natsx.NatsxClient, job *Job) error {
	data, err := job.Encode()
	if err != nil {
		return err
	}
	return cli.PublishOnce(ctx, data, job.MessageID)
}
