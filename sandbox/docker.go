package sandbox

import (
	"fmt"
	"log"
	"os"
	"os/exec"
)

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// buildDockerCommand runs the script in a hardened, throwaway container. The
// output directory is mounted at the same path it has on the host so that
// the absolute artifact path given to the model is valid on both sides.
func (r *Runner) buildDockerCommand(env Environment, script, containerName string) []string {
	lim := r.cfg.Docker
	containerScript := "/app/code" + env.Extension
	args := []string{
		"docker", "run",
		"--rm",
		"--name", containerName,
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
		"--pids-limit", orDefault(lim.Pids, "256"),
		"--memory", orDefault(lim.Memory, "512m"),
		"--cpus", orDefault(lim.CPUs, "1.0"),
		"--tmpfs", fmt.Sprintf("/tmp:rw,nosuid,size=%s", orDefault(lim.Tmpfs, "128m")),
		"--network", orDefault(lim.Network, "none"),
		"-e", "MPLBACKEND=Agg",
		"-e", "MPLCONFIGDIR=/tmp",
		"-e", "OUTPUT_DIR=" + r.cfg.OutputDir,
		"-v", fmt.Sprintf("%s:%s:ro", script, containerScript),
		"-v", fmt.Sprintf("%s:%s", r.cfg.OutputDir, r.cfg.OutputDir),
	}

	if r.cfg.InputDir != "" {
		if st, err := os.Stat(r.cfg.InputDir); err == nil && st.IsDir() {
			args = append(args, "-v", fmt.Sprintf("%s:/app/input_files:ro", r.cfg.InputDir))
			log.Printf("📁 [SANDBOX] Mounted input directory: %s -> /app/input_files:ro", r.cfg.InputDir)
		}
	}

	return append(args, env.Image, env.Command, containerScript)
}

// cleanupContainer removes a container left behind by a killed docker CLI.
func cleanupContainer(name string) {
	_ = exec.Command("docker", "rm", "-f", name).Run()
}
