package mqtt

import "fmt"

// Subscribe routes messages matching topic (which may contain + and #
// wildcards) to handler. The route is remembered and re-established after
// every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	r := route{qos: qos, handler: handler}
	c.routesMu.Lock()
	c.routes[topic] = r
	c.routesMu.Unlock()

	if err := c.subscribe(topic, r); err != nil {
		c.routesMu.Lock()
		delete(c.routes, topic)
		c.routesMu.Unlock()
		return err
	}
	return nil
}

func (c *Client) subscribe(topic string, r route) error {
	token := c.client.Subscribe(topic, r.qos, c.dispatch(r.handler))
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: %s: no ack after %v", ErrSubscribeFailed, topic, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Unsubscribe drops the route for topic. Messages already in flight may
// still reach the old handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	c.routesMu.Lock()
	delete(c.routes, topic)
	c.routesMu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("%w: unsubscribe %s: no ack after %v", ErrSubscribeFailed, topic, operationTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: unsubscribe %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Routes returns the subscribed topic filters.
func (c *Client) Routes() []string {
	c.routesMu.RLock()
	defer c.routesMu.RUnlock()
	out := make([]string, 0, len(c.routes))
	for t := range c.routes {
		out = append(out, t)
	}
	return out
}
