// Package location resolve a posição de um colaborador por uma cascata de
// estratégias (leitura precisa do aparelho, leitura de rede, gpsd, IP, última
// posição conhecida e coordenada padrão da clínica) e confere a cerca da
// unidade.
package location
