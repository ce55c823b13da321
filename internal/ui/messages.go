package ui

import (
	"dpconv/internal/pipeline"
	"dpconv/internal/progress"
)

type jobUpdateMsg struct {
	U progress.Update
}

type jobLogMsg struct {
	L progress.Log
}

type jobResultMsg struct {
	R progress.Result
}

type batchDoneMsg struct {
	Stats pipeline.Stats
}
