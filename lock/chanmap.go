package lock

import "sync"

type chanMap struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func newChanMap() chanMap {
	return chanMap{m: make(map[string]chan struct{})}
}

func (c *chanMap) get(key string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.m[key]
	if !ok {
		ch = make(chan struct{}, 1)
		c.m[key] = ch
	}
	return ch
}
