package model

import "time"

type TaskSnapshot struct {
	ID        string     `json:"id"`
	Attempt   int        `json:"attempt"`
	Target    string     `json:"target"`
	Src       string     `json:"src"`
	Dst       string     `json:"dst"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Messages  Messages   `json:"messages"`
}

type TargetSnapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Method    Method     `json:"method"`
	Connected bool       `json:"connected"`
	Uploaded  int        `json:"uploaded"`
	Failed    int        `json:"failed"`
	LastSync  *time.Time `json:"last_sync"`
}

type DaemonSnapshot struct {
	Root      string           `json:"root"`
	StartedAt time.Time        `json:"started_at"`
	Queued    int              `json:"queued"`
	Targets   []TargetSnapshot `json:"targets"`
	Tasks     []TaskSnapshot   `json:"tasks"`
}
