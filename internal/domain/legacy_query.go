package domain

import "time"

// DefaultSeverity es el valor que usaba la tabla queries cuando no habia urgencia.
const DefaultSeverity = "moderate"

// LegacyQuery es una fila de la tabla queries, anterior al flujo por turnos.
// Se mantiene solo para lectura compatible con clientes viejos.
type LegacyQuery struct {
	ID              int64     `json:"id"`
	Symptoms        string    `json:"symptoms"`
	Severity        string    `json:"severity"`
	Conditions      []string  `json:"conditions"`
	Recommendations []string  `json:"recommendations"`
	Disclaimer      string    `json:"disclaimer"`
	CreatedAt       time.Time `json:"created_at"`
}
