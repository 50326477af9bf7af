package market

// Publisher 一个轻量事件分发器。
type Publisher struct {
	quoteSubs []chan Quote
}

func NewPublisher() *Publisher {
	return &Publisher{
		quoteSubs: make([]chan Quote, 0),
	}
}

// SubscribeQuote 订阅行情；buf 为缓冲深度，最少为 1。
func (p *Publisher) SubscribeQuote(buf int) <-chan Quote {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Quote, buf)
	p.quoteSubs = append(p.quoteSubs, ch)
	return ch
}

// PublishQuote 非阻塞广播，慢订阅者丢弃旧消息。
func (p *Publisher) PublishQuote(q Quote) {
	for _, ch := range p.quoteSubs {
		select {
		case ch <- q:
		default:
		}
	}
}
