package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"symptom-checker/internal/apiclient"
	"symptom-checker/internal/domain"
)

type cliConfig struct {
	APIURL       string `env:"SYMPTOM_API_URL" envDefault:"http://127.0.0.1:8000"`
	HistoryLimit int    `env:"CLI_HISTORY_LIMIT" envDefault:"10"`
}

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	client := apiclient.New(cfg.APIURL)
	sessionID := uuid.NewString()
	logger.Info("cli session", zap.String("session_id", sessionID), zap.String("api", cfg.APIURL))

	turn := 0
	for {
		fmt.Println("\n===== Symptom Checker =====")
		fmt.Println("[1] Nueva consulta")
		fmt.Println("[2] Ver historial")
		fmt.Println("[3] Borrar historial")
		fmt.Println("[4] Salir")
		fmt.Print("Selecciona una opcion: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		switch strings.TrimSpace(line) {
		case "1":
			turn++
			if err := consultationFlow(ctx, reader, client, fmt.Sprintf("%s-%d", sessionID, turn)); err != nil {
				fmt.Printf("Error en consulta: %s\n", describeError(err))
			}
		case "2":
			if err := historyFlow(ctx, client, cfg.HistoryLimit); err != nil {
				fmt.Printf("Error leyendo historial: %s\n", describeError(err))
			}
		case "3":
			if err := clearFlow(ctx, reader, client); err != nil {
				fmt.Printf("Error borrando historial: %s\n", describeError(err))
			}
		case "4", "salir", "exit":
			return
		default:
			fmt.Println("Opcion invalida.")
		}
	}
}

// consultationFlow replica el flujo del navegador: sintomas, preguntas, respuestas, evaluacion.
func consultationFlow(ctx context.Context, reader *bufio.Reader, client *apiclient.Client, requestID string) error {
	fmt.Print("Describe tus sintomas: ")
	symptoms, _ := reader.ReadString('\n')
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return errors.New("sintomas vacios")
	}

	fmt.Println("Consultando...")
	resp, err := client.Analyze(ctx, domain.ConsultationRequest{Symptoms: symptoms}, requestID+"-q")
	if err != nil {
		return err
	}
	if resp.ResponseType != domain.ResponseQuestions || len(resp.Questions) == 0 {
		printAssessment(resp)
		return nil
	}

	fmt.Println("\n--- Preguntas de seguimiento ---")
	history := make([]domain.QAPair, 0, len(resp.Questions))
	for i, q := range resp.Questions {
		fmt.Printf("[%d/%d] %s\n> ", i+1, len(resp.Questions), q)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer == "" {
			answer = "No answer provided"
		}
		history = append(history, domain.QAPair{Question: q, Answer: answer})
	}

	fmt.Println("Generando evaluacion...")
	assessment, err := client.Analyze(ctx, domain.ConsultationRequest{
		Symptoms:            symptoms,
		ConversationHistory: history,
		IsFollowup:          true,
	}, requestID+"-a")
	if err != nil {
		return err
	}
	printAssessment(assessment)
	return nil
}

func printAssessment(resp domain.AnalysisResponse) {
	a := resp.Assessment
	fmt.Printf("\n--- Evaluacion (%s) ---\n", resp.ConversationID)

	if conditions, ok := a["possible_conditions"].([]any); ok && len(conditions) > 0 {
		fmt.Println("Posibles condiciones:")
		for _, item := range conditions {
			c, ok := item.(map[string]any)
			if !ok {
				continue
			}
			fmt.Printf("  - %v (%v): %v\n", c["condition"], c["likelihood"], c["reasoning"])
		}
	}
	printList("Recomendaciones:", a["recommendations"])
	printList("Senales de alarma:", a["red_flags"])
	if v, ok := a["urgency_level"]; ok {
		fmt.Printf("Urgencia: %v\n", v)
	}
	if v, ok := a["when_to_seek_care"]; ok {
		fmt.Printf("Cuando consultar: %v\n", v)
	}
	if len(resp.Questions) > 0 {
		printList("Preguntas:", toAnySlice(resp.Questions))
	}
	fmt.Printf("\n%s\n", resp.Disclaimer)
}

func printList(title string, v any) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return
	}
	fmt.Println(title)
	for _, item := range items {
		fmt.Printf("  - %v\n", item)
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func historyFlow(ctx context.Context, client *apiclient.Client, limit int) error {
	records, err := client.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("Historial vacio.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("#%s %s [%s] %s\n",
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.ConsultationType,
			r.Symptoms,
		)
		if urgency, ok := r.Assessment["urgency_level"]; ok {
			fmt.Printf("    urgencia: %v\n", urgency)
		}
	}
	return nil
}

func clearFlow(ctx context.Context, reader *bufio.Reader, client *apiclient.Client) error {
	fmt.Print("Esto borra todo el historial. Continuar? [s/N]: ")
	confirm, _ := reader.ReadString('\n')
	if !strings.EqualFold(strings.TrimSpace(confirm), "s") {
		fmt.Println("Cancelado.")
		return nil
	}
	msg, err := client.ClearHistory(ctx)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func describeError(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%d %s", apiErr.Status, apiErr.Message)
	}
	return err.Error()
}
